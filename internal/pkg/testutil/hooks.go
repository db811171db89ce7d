package testutil

import (
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BeforeNextUpdate runs interleave once, right before the next UPDATE issued
// against table. interleave receives a handle bound to the same connection
// and transaction as that UPDATE, so its writes land between the caller's
// read and its conditional write.
func BeforeNextUpdate(t *testing.T, db *gorm.DB, table string, interleave func(tx *gorm.DB) error) {
	t.Helper()

	var fired atomic.Bool
	name := "testutil:before_update:" + uuid.NewString()
	err := db.Callback().Update().Before("gorm:update").Register(name, func(stmt *gorm.DB) {
		if stmt.Statement.Table != table || !fired.CompareAndSwap(false, true) {
			return
		}
		if err := interleave(stmt.Session(&gorm.Session{NewDB: true})); err != nil {
			_ = stmt.AddError(err)
		}
	})
	if err != nil {
		t.Fatalf("register update hook: %v", err)
	}
}
