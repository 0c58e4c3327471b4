package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/moffermann/school-attendance/core/attendance"
	"github.com/moffermann/school-attendance/core/notification"
	"github.com/moffermann/school-attendance/core/student"
	inmemdb "github.com/moffermann/school-attendance/storage/database/inmem"
)

// Logger routes service logs to the test output.
type Logger struct {
	T *testing.T
}

func NewLogger(t *testing.T) *Logger { return &Logger{T: t} }

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf("FATAL: %s %v", msg, args)
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.T.Helper()
	l.T.Logf("%s: %s %v", level, msg, args)
}

func CreateStudent(
	t *testing.T,
	dir *inmemdb.DirectoryRepository,
	name, grade string,
	isActive bool,
) student.Student {
	t.Helper()
	st := student.Student{
		ID:        uuid.New().String(),
		Name:      name,
		Grade:     grade,
		IsActive:  isActive,
		CreatedAt: time.Now().UTC(),
	}
	dir.AddStudent(st)
	return st
}

func CreateContact(
	t *testing.T,
	dir *inmemdb.DirectoryRepository,
	studentID, name, address string,
	channel notification.Channel,
	templates ...notification.Template,
) notification.GuardianContact {
	t.Helper()
	gc := notification.GuardianContact{
		GuardianID:   uuid.New().String(),
		GuardianName: name,
		Channel:      channel,
		Address:      address,
		Templates:    templates,
	}
	dir.AddContact(studentID, gc)
	return gc
}

func NewEvent(studentID string, typ attendance.EventType, occurredAt time.Time, localSeq ...int64) attendance.NewEvent {
	ne := attendance.NewEvent{
		StudentID:  studentID,
		DeviceID:   "dev-01",
		GateID:     "gate-main",
		Type:       typ,
		OccurredAt: occurredAt,
		Source:     "biometric",
	}
	if len(localSeq) > 0 {
		ne.LocalSeq = null.Int64From(localSeq[0])
	}
	return ne
}
