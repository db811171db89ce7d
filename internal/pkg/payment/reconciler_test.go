package payment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/notify"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/testutil"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec_test"
	testPrice         = int64(49900)
)

type countingNotifier struct {
	calls atomic.Int32
}

func (n *countingNotifier) SendOnce(context.Context, string) (notify.Result, error) {
	n.calls.Add(1)
	return notify.Sent, nil
}

type fixture struct {
	db         *gorm.DB
	repos      *repository.Repositories
	reconciler *Reconciler
	notifier   *countingNotifier
	session    *models.Session
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	gateway := NewGateway(config.Razorpay{KeyID: "rzp_test", KeySecret: testKeySecret, WebhookSecret: testWebhookSecret})
	notifier := &countingNotifier{}
	return &fixture{
		db:         db,
		repos:      repos,
		reconciler: NewReconciler(repos.Enrollment, repos.WebhookEvent, gateway, notifier),
		notifier:   notifier,
		session:    testutil.CreateSession(t, db, capacity, testPrice),
	}
}

// pendingOrder reserves a paid seat for email and attaches orderID to it.
func (f *fixture) pendingOrder(t *testing.T, email, orderID string) *models.Enrollment {
	t.Helper()
	ctx := context.Background()
	enrollment, _, err := f.repos.Enrollment.Reserve(ctx, f.session.ID, testutil.Payer(email), repository.ReservationPaid)
	require.NoError(t, err)
	require.NoError(t, f.repos.Enrollment.AttachOrder(ctx, enrollment.ID, orderID))
	return enrollment
}

func (f *fixture) enrollmentCount(t *testing.T) int {
	t.Helper()
	session, err := f.repos.Session.GetByID(context.Background(), f.session.ID)
	require.NoError(t, err)
	return session.CurrentEnrollments
}

func (f *fixture) status(t *testing.T, id string) *models.Enrollment {
	t.Helper()
	enrollment, err := f.repos.Enrollment.GetByID(context.Background(), id)
	require.NoError(t, err)
	return enrollment
}

func eventBody(event, orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"entity":"event","event":%q,"contains":["payment"],"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured","amount":49900,"currency":"INR","error_description":"Card declined"}}}}`,
		event, paymentID, orderID))
}

func signedDelivery(body []byte, eventID string) WebhookDelivery {
	return WebhookDelivery{Body: body, Signature: WebhookSignature(body, testWebhookSecret), EventID: eventID}
}

func TestHandleWebhook_RedeliveryIsDuplicate(t *testing.T) {
	f := newFixture(t, 5)
	enrollment := f.pendingOrder(t, "asha@example.com", "order_1")
	delivery := signedDelivery(eventBody(EventPaymentCaptured, "order_1", "pay_1"), "evt_1")

	first, err := f.reconciler.HandleWebhook(context.Background(), delivery)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, first.Outcome)
	assert.Equal(t, enrollment.ID, first.EnrollmentID)

	second, err := f.reconciler.HandleWebhook(context.Background(), delivery)
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, second.Outcome)

	stored := f.status(t, enrollment.ID)
	assert.Equal(t, models.PaymentStatusSuccess, stored.PaymentStatus)
	assert.Equal(t, "pay_1", stored.PaymentID)
	assert.Equal(t, 1, f.enrollmentCount(t))
	assert.Equal(t, int32(1), f.notifier.calls.Load())
}

func TestHandleWebhook_DistinctEventsForSameOrderCreditOnce(t *testing.T) {
	f := newFixture(t, 5)
	f.pendingOrder(t, "asha@example.com", "order_1")

	for i, event := range []string{EventPaymentAuthorized, EventPaymentCaptured, EventOrderPaid} {
		result, err := f.reconciler.HandleWebhook(context.Background(),
			signedDelivery(eventBody(event, "order_1", "pay_1"), fmt.Sprintf("evt_%d", i)))
		require.NoError(t, err)
		assert.Equal(t, WebhookProcessed, result.Outcome)
	}

	assert.Equal(t, 1, f.enrollmentCount(t))
	assert.Equal(t, int32(1), f.notifier.calls.Load())
}

func TestConfirmFromClient_ThenWebhook(t *testing.T) {
	f := newFixture(t, 5)
	enrollment := f.pendingOrder(t, "asha@example.com", "order_1")
	ctx := context.Background()

	confirmation, err := f.reconciler.ConfirmFromClient(ctx, "order_1", "pay_1", PaymentSignature("order_1", "pay_1", testKeySecret))
	require.NoError(t, err)
	assert.False(t, confirmation.AlreadyConfirmed)
	assert.Equal(t, enrollment.ID, confirmation.Enrollment.ID)

	result, err := f.reconciler.HandleWebhook(ctx, signedDelivery(eventBody(EventPaymentCaptured, "order_1", "pay_1"), "evt_1"))
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result.Outcome)

	assert.Equal(t, 1, f.enrollmentCount(t))
	assert.Equal(t, int32(1), f.notifier.calls.Load())
	assert.NotEmpty(t, f.status(t, enrollment.ID).PaymentSignature)
}

func TestWebhook_ThenConfirmFromClient(t *testing.T) {
	f := newFixture(t, 5)
	f.pendingOrder(t, "asha@example.com", "order_1")
	ctx := context.Background()

	_, err := f.reconciler.HandleWebhook(ctx, signedDelivery(eventBody(EventPaymentCaptured, "order_1", "pay_1"), ""))
	require.NoError(t, err)

	confirmation, err := f.reconciler.ConfirmFromClient(ctx, "order_1", "pay_1", PaymentSignature("order_1", "pay_1", testKeySecret))
	require.NoError(t, err)
	assert.True(t, confirmation.AlreadyConfirmed)
	assert.Equal(t, models.PaymentStatusSuccess, confirmation.Enrollment.PaymentStatus)

	assert.Equal(t, 1, f.enrollmentCount(t))
	assert.Equal(t, int32(1), f.notifier.calls.Load())
}

func TestConcurrentConfirmationsTransitionOnce(t *testing.T) {
	f := newFixture(t, 5)
	f.pendingOrder(t, "asha@example.com", "order_1")
	signature := PaymentSignature("order_1", "pay_1", testKeySecret)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.reconciler.ConfirmFromClient(context.Background(), "order_1", "pay_1", signature)
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			_, err := f.reconciler.HandleWebhook(context.Background(),
				signedDelivery(eventBody(EventPaymentCaptured, "order_1", "pay_1"), fmt.Sprintf("evt_%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.enrollmentCount(t))
	assert.Equal(t, int32(1), f.notifier.calls.Load())
}

func TestConfirmFromClient_LosesRaceToWebhook(t *testing.T) {
	f := newFixture(t, 5)
	enrollment := f.pendingOrder(t, "asha@example.com", "order_1")

	testutil.BeforeNextUpdate(t, f.db, "enrollments", func(tx *gorm.DB) error {
		if err := tx.Exec("UPDATE enrollments SET payment_status = ?, success_session_id = session_id, payment_id = ? WHERE id = ?",
			models.PaymentStatusSuccess, "pay_1", enrollment.ID).Error; err != nil {
			return err
		}
		return tx.Exec("UPDATE sessions SET current_enrollments = current_enrollments + 1 WHERE id = ?", f.session.ID).Error
	})

	confirmation, err := f.reconciler.ConfirmFromClient(context.Background(), "order_1", "pay_1",
		PaymentSignature("order_1", "pay_1", testKeySecret))
	require.NoError(t, err)
	assert.True(t, confirmation.AlreadyConfirmed)
	assert.Equal(t, models.PaymentStatusSuccess, confirmation.Enrollment.PaymentStatus)

	assert.Equal(t, 1, f.enrollmentCount(t))
	assert.Zero(t, f.notifier.calls.Load())
}

func TestConfirmFromClient_TamperedSignature(t *testing.T) {
	f := newFixture(t, 5)
	enrollment := f.pendingOrder(t, "asha@example.com", "order_1")

	_, err := f.reconciler.ConfirmFromClient(context.Background(), "order_1", "pay_1",
		PaymentSignature("order_1", "pay_2", testKeySecret))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = f.reconciler.ConfirmFromClient(context.Background(), "order_unknown", "pay_1",
		PaymentSignature("order_1", "pay_1", testKeySecret))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	assert.Equal(t, models.PaymentStatusPending, f.status(t, enrollment.ID).PaymentStatus)
	assert.Equal(t, 0, f.enrollmentCount(t))
	assert.Zero(t, f.notifier.calls.Load())
}

func TestHandleWebhook_TamperedSignatureRecordsNothing(t *testing.T) {
	f := newFixture(t, 5)
	enrollment := f.pendingOrder(t, "asha@example.com", "order_1")

	body := eventBody(EventPaymentCaptured, "order_1", "pay_1")
	_, err := f.reconciler.HandleWebhook(context.Background(), WebhookDelivery{
		Body:      body,
		Signature: WebhookSignature(body, "not-the-secret"),
		EventID:   "evt_1",
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	var events int64
	require.NoError(t, f.db.Model(&models.PaymentWebhookEvent{}).Count(&events).Error)
	assert.Zero(t, events)
	assert.Equal(t, models.PaymentStatusPending, f.status(t, enrollment.ID).PaymentStatus)
}

func TestHandleWebhook_FailedThenLateCapture(t *testing.T) {
	f := newFixture(t, 5)
	enrollment := f.pendingOrder(t, "asha@example.com", "order_1")
	ctx := context.Background()

	result, err := f.reconciler.HandleWebhook(ctx, signedDelivery(eventBody(EventPaymentFailed, "order_1", "pay_1"), "evt_1"))
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result.Outcome)

	stored := f.status(t, enrollment.ID)
	assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)
	assert.Equal(t, "Card declined", stored.FailureReason)

	result, err = f.reconciler.HandleWebhook(ctx, signedDelivery(eventBody(EventPaymentCaptured, "order_1", "pay_2"), "evt_2"))
	require.NoError(t, err)
	assert.Equal(t, WebhookRejected, result.Outcome)

	assert.Equal(t, models.PaymentStatusFailed, f.status(t, enrollment.ID).PaymentStatus)
	assert.Equal(t, 0, f.enrollmentCount(t))
	assert.Zero(t, f.notifier.calls.Load())
}

func TestHandleWebhook_SuccessIsNeverDowngraded(t *testing.T) {
	f := newFixture(t, 5)
	enrollment := f.pendingOrder(t, "asha@example.com", "order_1")
	ctx := context.Background()

	_, err := f.reconciler.HandleWebhook(ctx, signedDelivery(eventBody(EventPaymentCaptured, "order_1", "pay_1"), "evt_1"))
	require.NoError(t, err)
	result, err := f.reconciler.HandleWebhook(ctx, signedDelivery(eventBody(EventPaymentFailed, "order_1", "pay_1"), "evt_2"))
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result.Outcome)

	assert.Equal(t, models.PaymentStatusSuccess, f.status(t, enrollment.ID).PaymentStatus)
	assert.Equal(t, 1, f.enrollmentCount(t))
}

func TestHandleWebhook_IgnoredAndRejected(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	result, err := f.reconciler.HandleWebhook(ctx, signedDelivery([]byte(`{"event":"refund.created","payload":{}}`), "evt_1"))
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result.Outcome)

	result, err = f.reconciler.HandleWebhook(ctx, signedDelivery([]byte(`not json`), "evt_2"))
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result.Outcome)

	result, err = f.reconciler.HandleWebhook(ctx, signedDelivery(eventBody(EventPaymentCaptured, "order_missing", "pay_1"), "evt_3"))
	require.NoError(t, err)
	assert.Equal(t, WebhookRejected, result.Outcome)
}

func TestConfirm_SessionFullAfterPayment(t *testing.T) {
	f := newFixture(t, 1)
	first := f.pendingOrder(t, "asha@example.com", "order_1")
	second := f.pendingOrder(t, "ravi@example.com", "order_2")
	ctx := context.Background()

	_, err := f.reconciler.ConfirmFromClient(ctx, "order_1", "pay_1", PaymentSignature("order_1", "pay_1", testKeySecret))
	require.NoError(t, err)

	_, err = f.reconciler.ConfirmFromClient(ctx, "order_2", "pay_2", PaymentSignature("order_2", "pay_2", testKeySecret))
	assert.ErrorIs(t, err, repository.ErrSessionFull)

	assert.Equal(t, models.PaymentStatusSuccess, f.status(t, first.ID).PaymentStatus)
	lost := f.status(t, second.ID)
	assert.Equal(t, models.PaymentStatusFailed, lost.PaymentStatus)
	assert.Equal(t, models.FailureReasonSessionFull, lost.FailureReason)
	assert.Equal(t, 1, f.enrollmentCount(t))
	assert.Equal(t, int32(1), f.notifier.calls.Load())
}

func TestConfirm_SecondPaidEnrollmentForSamePayer(t *testing.T) {
	f := newFixture(t, 5)
	first := f.pendingOrder(t, "asha@example.com", "order_1")
	second := f.pendingOrder(t, "asha@example.com", "order_2")
	ctx := context.Background()

	_, err := f.reconciler.ConfirmFromClient(ctx, "order_1", "pay_1", PaymentSignature("order_1", "pay_1", testKeySecret))
	require.NoError(t, err)

	result, err := f.reconciler.HandleWebhook(ctx, signedDelivery(eventBody(EventPaymentCaptured, "order_2", "pay_2"), "evt_2"))
	require.NoError(t, err)
	assert.Equal(t, WebhookRejected, result.Outcome)

	assert.Equal(t, models.PaymentStatusSuccess, f.status(t, first.ID).PaymentStatus)
	dup := f.status(t, second.ID)
	assert.Equal(t, models.PaymentStatusFailed, dup.PaymentStatus)
	assert.Equal(t, models.FailureReasonDuplicateSuccess, dup.FailureReason)
	assert.Equal(t, 1, f.enrollmentCount(t))
}
