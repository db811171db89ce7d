package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
)

func TestSend_NotConfigured(t *testing.T) {
	m := NewSMTPMailer(config.Mail{Sender: "courses@example.com"})
	_, err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "x", HTML: "y"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewMessageID_UsesSenderDomain(t *testing.T) {
	id := newMessageID("Courses <courses@example.com>")
	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@example.com>"))

	assert.True(t, strings.HasSuffix(newMessageID("no-at-sign"), "@localhost>"))
}

func TestBuildMessage_Headers(t *testing.T) {
	raw := string(buildMessage("courses@example.com", "<id@example.com>", Message{
		To:      "asha@example.com",
		Subject: "Enrollment confirmed",
		HTML:    "<p>See you there</p>",
	}))

	require.Contains(t, raw, "From: courses@example.com\r\n")
	assert.Contains(t, raw, "To: asha@example.com\r\n")
	assert.Contains(t, raw, "Subject: Enrollment confirmed\r\n")
	assert.Contains(t, raw, "Message-ID: <id@example.com>\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>See you there</p>"))
}
