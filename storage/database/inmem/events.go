package inmemdb

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moffermann/school-attendance/core"
	"github.com/moffermann/school-attendance/core/attendance"
)

// EventRepository is the in-memory attendance.Repository used by tests and
// local tooling. Per-student serialization mimics the advisory lock: a
// buffered channel per student, held until the tx commits or rolls back.
type EventRepository struct {
	mu     sync.RWMutex
	events map[string][]attendance.Event
	corrs  map[string][]attendance.SequenceCorrection

	lockMu sync.Mutex
	locks  map[string]chan struct{}

	// LockDelay artificially delays lock acquisition so tests can exercise
	// the fail-open timeout path.
	LockDelay time.Duration
}

var _ attendance.Repository = (*EventRepository)(nil) // interface compliance check

func NewEventRepository() *EventRepository {
	return &EventRepository{
		events: make(map[string][]attendance.Event),
		corrs:  make(map[string][]attendance.SequenceCorrection),
		locks:  make(map[string]chan struct{}),
	}
}

type eventTx struct {
	repo    *EventRepository
	events  []attendance.Event
	corrs   []attendance.SequenceCorrection
	release []func()
	done    bool
}

func (t *eventTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true

	t.repo.mu.Lock()
	for _, ev := range t.events {
		t.repo.events[ev.StudentID] = append(t.repo.events[ev.StudentID], ev)
	}
	for _, corr := range t.corrs {
		t.repo.corrs[corr.StudentID] = append(t.repo.corrs[corr.StudentID], corr)
	}
	t.repo.mu.Unlock()

	t.releaseLocks()
	return nil
}

func (t *eventTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.releaseLocks()
	return nil
}

func (t *eventTx) releaseLocks() {
	for _, release := range t.release {
		release()
	}
	t.release = nil
}

func (repo *EventRepository) Begin(context.Context) (attendance.Tx, error) {
	return &eventTx{repo: repo}, nil
}

func (repo *EventRepository) studentLock(studentID string) chan struct{} {
	repo.lockMu.Lock()
	defer repo.lockMu.Unlock()
	ch, ok := repo.locks[studentID]
	if !ok {
		ch = make(chan struct{}, 1)
		repo.locks[studentID] = ch
	}
	return ch
}

func (repo *EventRepository) LockStudentTimeline(ctx context.Context, tx attendance.Tx, studentID string) error {
	if repo.LockDelay > 0 {
		select {
		case <-time.After(repo.LockDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ch := repo.studentLock(studentID)
	select {
	case ch <- struct{}{}:
		t := tx.(*eventTx)
		t.release = append(t.release, func() { <-ch })
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (repo *EventRepository) PredecessorEvent(ctx context.Context, _ attendance.Tx, studentID string, before time.Time) (attendance.Event, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Event{}, err
	}

	repo.mu.RLock()
	defer repo.mu.RUnlock()

	var pred *attendance.Event
	for i := range repo.events[studentID] {
		ev := repo.events[studentID][i]
		if !ev.OccurredAt.Before(before) {
			continue
		}
		if pred == nil || laterOnTimeline(ev, *pred) {
			pred = &ev
		}
	}
	if pred == nil {
		return attendance.Event{}, attendance.ErrNoPredecessor
	}
	return *pred, nil
}

// laterOnTimeline reports whether a sorts after b: occurred_at first,
// local_seq then synced_at as tie-breaks.
func laterOnTimeline(a, b attendance.Event) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.After(b.OccurredAt)
	}
	if a.LocalSeq.Valid && b.LocalSeq.Valid && a.LocalSeq.Int64 != b.LocalSeq.Int64 {
		return a.LocalSeq.Int64 > b.LocalSeq.Int64
	}
	return a.SyncedAt.After(b.SyncedAt)
}

func (repo *EventRepository) CreateEvent(ctx context.Context, tx attendance.Tx, ev attendance.Event) (attendance.Event, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Event{}, err
	}
	ev.ID = uuid.New().String()
	t := tx.(*eventTx)
	t.events = append(t.events, ev)
	return ev, nil
}

func (repo *EventRepository) CreateCorrection(ctx context.Context, tx attendance.Tx, corr attendance.SequenceCorrection) (attendance.SequenceCorrection, error) {
	if err := ctx.Err(); err != nil {
		return attendance.SequenceCorrection{}, err
	}
	corr.ID = uuid.New().String()
	t := tx.(*eventTx)
	t.corrs = append(t.corrs, corr)
	return corr, nil
}

func (repo *EventRepository) QueryStudentEvents(
	ctx context.Context,
	studentID string,
	filter *attendance.QueryFilter,
	ordering ...core.DBOrdering,
) ([]attendance.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo.mu.RLock()
	events := make([]attendance.Event, 0, len(repo.events[studentID]))
	for _, ev := range repo.events[studentID] {
		if matchesFilter(ev, filter) {
			events = append(events, ev)
		}
	}
	repo.mu.RUnlock()

	ascending := true
	if len(ordering) > 0 && ordering[0].Field == "occurred_at" {
		ascending = ordering[0].Ascending
	}
	sort.Slice(events, func(i, j int) bool {
		if ascending {
			return laterOnTimeline(events[j], events[i])
		}
		return laterOnTimeline(events[i], events[j])
	})
	return events, nil
}

func matchesFilter(ev attendance.Event, filter *attendance.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if !filter.From.IsZero() && ev.OccurredAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && ev.OccurredAt.After(filter.To) {
		return false
	}
	if filter.Type != "" && ev.Type != filter.Type {
		return false
	}
	if filter.CorrectedOnly && !ev.ConflictCorrected {
		return false
	}
	return true
}

func (repo *EventRepository) QueryStudentCorrections(ctx context.Context, studentID string) ([]attendance.SequenceCorrection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo.mu.RLock()
	corrs := make([]attendance.SequenceCorrection, len(repo.corrs[studentID]))
	copy(corrs, repo.corrs[studentID])
	repo.mu.RUnlock()

	sort.Slice(corrs, func(i, j int) bool { return corrs[i].CorrectedAt.Before(corrs[j].CorrectedAt) })
	return corrs, nil
}
