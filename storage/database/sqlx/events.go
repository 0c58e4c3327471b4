package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/moffermann/school-attendance/core"
	"github.com/moffermann/school-attendance/core/attendance"
)

const eventColumns = `id, student_id, type, gate_id, device_id, occurred_at, synced_at, local_seq, evidence_ref, source, conflict_corrected`

// orderable whitelists timeline ORDER BY fields.
var orderable = map[string]bool{
	"occurred_at": true,
	"synced_at":   true,
	"local_seq":   true,
}

type eventRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *sql.DB) *eventRepository {
	return &eventRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo eventRepository) Begin(ctx context.Context) (attendance.Tx, error) {
	return repo.db.BeginTxx(ctx, nil)
}

func (repo eventRepository) tx(tx attendance.Tx) (*sqlx.Tx, error) {
	t, ok := tx.(*sqlx.Tx)
	if !ok {
		// the service handed us a transaction we did not open; the process is
		// miswired and cannot safely keep serving
		return nil, core.NewShutdownError(fmt.Sprintf("unexpected transaction type %T", tx))
	}
	return t, nil
}

// LockStudentTimeline takes the advisory transaction lock keyed by the
// student id. Postgres releases it at commit/rollback, which is exactly the
// span of "read predecessor → decide type → insert".
func (repo eventRepository) LockStudentTimeline(ctx context.Context, tx attendance.Tx, studentID string) error {
	t, err := repo.tx(tx)
	if err != nil {
		return err
	}
	_, err = t.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, studentID)
	return errors.Wrap(err, "acquiring timeline lock")
}

func (repo eventRepository) PredecessorEvent(ctx context.Context, tx attendance.Tx, studentID string, before time.Time) (attendance.Event, error) {
	t, err := repo.tx(tx)
	if err != nil {
		return attendance.Event{}, err
	}

	q := `SELECT ` + eventColumns + `
		FROM attendance_event
		WHERE student_id = $1 AND occurred_at < $2
		ORDER BY occurred_at DESC, local_seq DESC NULLS LAST, synced_at DESC
		LIMIT 1`

	var ev attendance.Event
	if err = t.GetContext(ctx, &ev, q, studentID, before); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Event{}, attendance.ErrNoPredecessor
		}
		return attendance.Event{}, errors.Wrap(err, "querying predecessor event")
	}
	return ev, nil
}

func (repo eventRepository) CreateEvent(ctx context.Context, tx attendance.Tx, ev attendance.Event) (attendance.Event, error) {
	t, err := repo.tx(tx)
	if err != nil {
		return attendance.Event{}, err
	}

	ev.ID = uuid.New().String()
	q := `INSERT INTO attendance_event (` + eventColumns + `)
		VALUES (:id, :student_id, :type, :gate_id, :device_id, :occurred_at, :synced_at, :local_seq, :evidence_ref, :source, :conflict_corrected)`
	if _, err = t.NamedExecContext(ctx, q, ev); err != nil {
		return attendance.Event{}, errors.Wrap(err, "inserting event")
	}
	return ev, nil
}

func (repo eventRepository) CreateCorrection(ctx context.Context, tx attendance.Tx, corr attendance.SequenceCorrection) (attendance.SequenceCorrection, error) {
	t, err := repo.tx(tx)
	if err != nil {
		return attendance.SequenceCorrection{}, err
	}

	corr.ID = uuid.New().String()
	q := `INSERT INTO sequence_correction (id, event_id, student_id, requested_type, corrected_type, device_id, gate_id, occurred_at, corrected_at)
		VALUES (:id, :event_id, :student_id, :requested_type, :corrected_type, :device_id, :gate_id, :occurred_at, :corrected_at)`
	if _, err = t.NamedExecContext(ctx, q, corr); err != nil {
		return attendance.SequenceCorrection{}, errors.Wrap(err, "inserting sequence correction")
	}
	return corr, nil
}

func (repo eventRepository) QueryStudentEvents(
	ctx context.Context,
	studentID string,
	filter *attendance.QueryFilter,
	ordering ...core.DBOrdering,
) ([]attendance.Event, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{studentID}

	if filter != nil {
		if !filter.From.IsZero() {
			args = append(args, filter.From)
			where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
		}
		if !filter.To.IsZero() {
			args = append(args, filter.To)
			where = append(where, fmt.Sprintf("occurred_at <= $%d", len(args)))
		}
		if filter.Type != "" {
			args = append(args, filter.Type)
			where = append(where, fmt.Sprintf("type = $%d", len(args)))
		}
		if filter.CorrectedOnly {
			where = append(where, "conflict_corrected")
		}
	}

	orderBy := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if orderable[ord.Field] {
			orderBy = append(orderBy, ord.String())
		}
	}
	if len(orderBy) == 0 {
		orderBy = append(orderBy, "occurred_at ASC")
	}

	q := `SELECT ` + eventColumns + ` FROM attendance_event WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + strings.Join(orderBy, ", ")

	events := make([]attendance.Event, 0)
	if err := repo.db.SelectContext(ctx, &events, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying student events")
	}
	return events, nil
}

func (repo eventRepository) QueryStudentCorrections(ctx context.Context, studentID string) ([]attendance.SequenceCorrection, error) {
	q := `SELECT id, event_id, student_id, requested_type, corrected_type, device_id, gate_id, occurred_at, corrected_at
		FROM sequence_correction
		WHERE student_id = $1
		ORDER BY corrected_at ASC`

	corrs := make([]attendance.SequenceCorrection, 0)
	if err := repo.db.SelectContext(ctx, &corrs, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying sequence corrections")
	}
	return corrs, nil
}
