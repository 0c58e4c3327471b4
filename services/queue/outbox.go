package queuesvc

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/moffermann/school-attendance/core"
)

// outboxService enqueues delivery jobs into the delivery_job table, from
// which the outbound workers poll. Writing to the shared store instead of a
// broker keeps the job visible for the reconciliation sweep when workers are
// down.
type outboxService struct {
	db *sqlx.DB
}

var _ core.DeliveryQueue = (*outboxService)(nil)

func NewOutboxService(db *sql.DB) *outboxService {
	return &outboxService{db: sqlx.NewDb(db, "postgres")}
}

func (svc *outboxService) Enqueue(ctx context.Context, job core.DeliveryJob) error {
	q := `INSERT INTO delivery_job (id, job_type, notification_id, recipient, template, payload, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := svc.db.ExecContext(
		ctx, q,
		uuid.New().String(), job.JobType, job.NotificationID, job.Recipient, job.Template, job.Payload, time.Now().UTC(),
	)
	return errors.Wrap(err, "inserting delivery job")
}
