package sqlxrepos

import (
	"context"
	"testing"

	"github.com/moffermann/school-attendance/core"
)

type foreignTx struct{}

func (foreignTx) Commit() error   { return nil }
func (foreignTx) Rollback() error { return nil }

func Test_eventRepository_rejectsForeignTx(t *testing.T) {
	repo := eventRepository{}

	err := repo.LockStudentTimeline(context.Background(), foreignTx{}, "a29e9cc7-58a4-4dd6-a3b6-ad16bd6fdd4b")
	if err == nil {
		t.Fatal("LockStudentTimeline() expected an error for a foreign transaction")
	}
	if !core.IsShutdown(err) {
		t.Errorf("LockStudentTimeline() error = %v, want a shutdown error", err)
	}
}
