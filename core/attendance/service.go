package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/moffermann/school-attendance/core"
	"github.com/moffermann/school-attendance/core/student"
	"github.com/moffermann/school-attendance/metrics"
)

var (
	// errors
	ErrStudentNotFound = errors.New("student not found")
	ErrNoPredecessor   = errors.New("no predecessor event")

	errLockTimeout   = errors.New("student timeline lock timed out")
	errEventTooOld   = errors.New("occurred_at is too far in the past")
	errEventInFuture = errors.New("occurred_at is in the future")

	nowFunc = time.Now // mockable
)

type (
	// Tx is an atomic unit of repository writes. The student timeline lock is
	// scoped to it: commit or rollback releases the lock.
	Tx interface {
		Commit() error
		Rollback() error
	}

	Repository interface {
		Begin(ctx context.Context) (Tx, error)
		// LockStudentTimeline acquires the exclusive per-student lock for the
		// duration of tx. It blocks until acquired or ctx expires. Other
		// students' timelines are never affected.
		LockStudentTimeline(ctx context.Context, tx Tx, studentID string) error
		// PredecessorEvent returns the student's event with the greatest
		// occurred_at strictly before `before`, or ErrNoPredecessor.
		PredecessorEvent(ctx context.Context, tx Tx, studentID string, before time.Time) (Event, error)
		CreateEvent(ctx context.Context, tx Tx, ev Event) (Event, error)
		CreateCorrection(ctx context.Context, tx Tx, corr SequenceCorrection) (SequenceCorrection, error)
		// QueryStudentEvents applies AND operation on available QueryFilter fields.
		QueryStudentEvents(ctx context.Context, studentID string, filter *QueryFilter, ordering ...core.DBOrdering) ([]Event, error)
		QueryStudentCorrections(ctx context.Context, studentID string) ([]SequenceCorrection, error)
	}

	// Directory is the external student directory; GetStudent fails with
	// ErrStudentNotFound for unknown ids.
	Directory interface {
		GetStudent(ctx context.Context, id string) (student.Student, error)
	}

	// FlagSource exposes the sequence validation kill switch, read at call time.
	FlagSource interface {
		SequenceValidationEnabled() bool
	}

	// Notifier is told about committed events. Implementations own their
	// failure handling; registration never fails because of them.
	Notifier interface {
		EventRegistered(ctx context.Context, ev Event)
	}

	Service struct {
		repo      Repository
		directory Directory
		flags     FlagSource
		notifier  Notifier
		validate  *validator.Validate
		logger    core.Logger
		conf      *core.Config
	}
)

func NewService(
	repo Repository,
	directory Directory,
	flags FlagSource,
	notifier Notifier,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		flags:     flags,
		notifier:  notifier,
		validate:  validate,
		logger:    logger,
		conf:      conf,
	}
}

// RegisterEvent validates and persists one swipe, correcting its type when it
// would break the student's IN/OUT alternation, then triggers guardian
// notifications. It fails with ErrStudentNotFound or core.ValidationError
// only; lock timeouts degrade to persisting the requested type as given.
func (svc *Service) RegisterEvent(ctx context.Context, ne NewEvent) (Event, error) {
	if err := ne.Validate(svc.validate, svc); err != nil {
		return Event{}, err
	}
	ne.OccurredAt = ne.OccurredAt.UTC()

	if _, err := svc.directory.GetStudent(ctx, ne.StudentID); err != nil {
		return Event{}, err
	}

	var resolver typeResolver = passThrough{}
	if svc.flags.SequenceValidationEnabled() {
		resolver = strictAlternation{repo: svc.repo}
	}

	ev, err := svc.register(ctx, resolver, ne)
	if errors.Cause(err) == errLockTimeout {
		// fail open: ingestion availability wins over correction strictness
		svc.logger.Warn(fmt.Sprintf(
			"timeline lock timed out for student %s; registering %q without sequence validation",
			ne.StudentID, ne.Type,
		))
		metrics.SequenceLockTimeouts.Inc()
		ev, err = svc.register(ctx, passThrough{}, ne)
	}
	if err != nil {
		return Event{}, err
	}

	metrics.EventsRegistered.WithLabelValues(string(ev.Type)).Inc()
	if ev.ConflictCorrected {
		metrics.SequenceCorrections.Inc()
	}

	if svc.notifier != nil {
		svc.notifier.EventRegistered(ctx, ev)
	}
	return ev, nil
}

// register runs "decide type → insert event (+ correction)" as one
// transaction. The resolver runs under a bounded context so a contended lock
// can never stall ingestion past the configured timeout.
func (svc *Service) register(ctx context.Context, resolver typeResolver, ne NewEvent) (Event, error) {
	tx, err := svc.repo.Begin(ctx)
	if err != nil {
		return Event{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	lockCtx, cancel := context.WithTimeout(ctx, svc.conf.Attendance.LockTimeout)
	defer cancel()

	typ, err := resolver.resolve(lockCtx, tx, ne)
	if err != nil {
		if ctx.Err() != nil {
			// the caller is gone: abort outright, no partial writes
			return Event{}, errors.Wrap(ctx.Err(), "registering event")
		}
		if lockCtx.Err() == context.DeadlineExceeded {
			return Event{}, errLockTimeout
		}
		return Event{}, err
	}

	now := nowFunc().UTC()
	ev := Event{
		StudentID:         ne.StudentID,
		Type:              typ,
		GateID:            ne.GateID,
		DeviceID:          ne.DeviceID,
		OccurredAt:        ne.OccurredAt,
		SyncedAt:          now,
		LocalSeq:          ne.LocalSeq,
		EvidenceRef:       ne.EvidenceRef,
		Source:            null.NewString(ne.Source, ne.Source != ""),
		ConflictCorrected: typ != ne.Type,
	}
	ev, err = svc.repo.CreateEvent(ctx, tx, ev)
	if err != nil {
		return Event{}, errors.Wrap(err, "inserting event")
	}

	if ev.ConflictCorrected {
		corr := SequenceCorrection{
			EventID:       ev.ID,
			StudentID:     ev.StudentID,
			RequestedType: ne.Type,
			CorrectedType: ev.Type,
			DeviceID:      ev.DeviceID,
			GateID:        ev.GateID,
			OccurredAt:    ev.OccurredAt,
			CorrectedAt:   now,
		}
		if _, err = svc.repo.CreateCorrection(ctx, tx, corr); err != nil {
			return Event{}, errors.Wrap(err, "inserting sequence correction")
		}
	}

	if err = tx.Commit(); err != nil {
		return Event{}, errors.Wrap(err, "committing event")
	}
	return ev, nil
}

// StudentTimeline returns the student's events; default ordering is
// chronological.
func (svc *Service) StudentTimeline(ctx context.Context, studentID string, filter *QueryFilter, ordering ...core.DBOrdering) ([]Event, error) {
	if _, err := svc.directory.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "occurred_at", Ascending: true}}
	}
	return svc.repo.QueryStudentEvents(ctx, studentID, filter, ordering...)
}

// StudentCorrections returns the student's sequence correction audit trail.
func (svc *Service) StudentCorrections(ctx context.Context, studentID string) ([]SequenceCorrection, error) {
	if _, err := svc.directory.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryStudentCorrections(ctx, studentID)
}

func (svc *Service) checkTimestamp(occurredAt time.Time) error {
	now := nowFunc()
	if occurredAt.Before(now.Add(-svc.conf.Attendance.MaxEventLag)) {
		return core.NewValidationError(errEventTooOld, core.FieldError{Field: "occurred_at", Error: errEventTooOld.Error()})
	}
	if occurredAt.After(now.Add(svc.conf.Attendance.MaxEventLead)) {
		return core.NewValidationError(errEventInFuture, core.FieldError{Field: "occurred_at", Error: errEventInFuture.Error()})
	}
	return nil
}
