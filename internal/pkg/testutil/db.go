package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/database"
)

// NewTestDB opens an isolated in-memory SQLite database with foreign keys
// enforced and the full schema migrated. A single connection serializes
// transactions the way row locks do on MySQL.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1&_busy_timeout=5000", name)

	cfg := database.Config()
	cfg.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateSession inserts a session scheduled one week ahead.
func CreateSession(t *testing.T, db *gorm.DB, maxCapacity int, price int64) *models.Session {
	t.Helper()

	session := &models.Session{
		Title:           "Intro to Distributed Systems",
		SessionDate:     time.Now().Add(7 * 24 * time.Hour),
		DurationMinutes: 90,
		MaxCapacity:     maxCapacity,
		Price:           price,
		Currency:        models.DefaultCurrency,
		Status:          models.SessionStatusUpcoming,
	}
	if err := db.Create(session).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

// Payer returns a valid payer identity for the given email.
func Payer(email string) models.Payer {
	return models.Payer{
		FullName: "Asha Verma",
		Email:    email,
		Phone:    "+919876543210",
	}
}
