package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/moffermann/school-attendance/core/notification"
)

const notificationColumns = `id, guardian_id, channel, template, context_id, notification_date, status, payload, retries, created_at, updated_at`

// uniqueViolation is the postgres error code the dedup index raises.
const uniqueViolation = "23505"

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sql.DB) *notificationRepository {
	return &notificationRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo notificationRepository) GetAttendanceNotification(ctx context.Context, key notification.DedupKey) (notification.Notification, error) {
	q := `SELECT ` + notificationColumns + `
		FROM notification
		WHERE guardian_id = $1 AND channel = $2 AND template = $3 AND context_id = $4 AND notification_date = $5`

	var n notification.Notification
	err := repo.db.GetContext(ctx, &n, q, key.GuardianID, key.Channel, key.Template, key.ContextID, key.Date)
	if err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "querying notification")
	}
	return n, nil
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.New().String()
	q := `INSERT INTO notification (` + notificationColumns + `)
		VALUES (:id, :guardian_id, :channel, :template, :context_id, :notification_date, :status, :payload, :retries, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, n); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return notification.Notification{}, notification.ErrDuplicate
		}
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}
