package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/moffermann/school-attendance/core"
	"github.com/moffermann/school-attendance/core/attendance"
	"github.com/moffermann/school-attendance/metrics"
)

var (
	// errors
	ErrNotFound = errors.New("notification not found")
	// ErrDuplicate is returned by repositories when the dedup uniqueness
	// constraint rejects an insert; the service treats it as "already exists".
	ErrDuplicate = errors.New("notification already exists")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// GetAttendanceNotification fails with ErrNotFound when no row matches
		// the dedup key. It always hits the authoritative store; dedup
		// correctness cannot tolerate a stale cache.
		GetAttendanceNotification(ctx context.Context, key DedupKey) (Notification, error)
		// CreateNotification fails with ErrDuplicate when the dedup uniqueness
		// constraint rejects the row.
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
	}

	// Directory resolves a student's guardians to an already-materialized
	// contact view; the engine never walks the guardian/student object graph.
	Directory interface {
		GuardianContacts(ctx context.Context, studentID string) ([]GuardianContact, error)
	}

	// TimezoneSource supplies the tenant-local zone for day bucketing.
	TimezoneSource interface {
		Location() *time.Location
	}

	Service struct {
		repo      Repository
		directory Directory
		queue     core.DeliveryQueue
		tz        TimezoneSource
		logger    core.Logger
	}
)

var _ attendance.Notifier = (*Service)(nil) // interface compliance check

func NewService(repo Repository, directory Directory, queue core.DeliveryQueue, tz TimezoneSource, logger core.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		queue:     queue,
		tz:        tz,
		logger:    logger,
	}
}

// EventRegistered triggers guardian notifications for a committed event.
// Failures are logged and swallowed: the registration path is already done
// and is never blocked by notification or delivery-queue problems.
func (svc *Service) EventRegistered(ctx context.Context, ev attendance.Event) {
	tmpl := TemplateArrivalOK
	if ev.Type == attendance.EventOut {
		tmpl = TemplateDepartureOK
	}
	if _, err := svc.TriggerAttendance(ctx, ev, tmpl); err != nil {
		svc.logger.Error(fmt.Sprintf("triggering %q notifications for event %s: %v", tmpl, ev.ID, err), err)
	}
}

// TriggerAttendance creates at most one notification per guardian × enabled
// channel for the event's day and enqueues a delivery job for each newly
// created row. Calling it twice for the same (guardian, channel, template,
// student, day) yields the existing rows and no second enqueue.
func (svc *Service) TriggerAttendance(ctx context.Context, ev attendance.Event, tmpl Template) ([]Notification, error) {
	contacts, err := svc.directory.GuardianContacts(ctx, ev.StudentID)
	if err != nil {
		return nil, errors.Wrap(err, "resolving guardian contacts")
	}

	day := LocalDay(ev.OccurredAt, svc.tz.Location())

	notifs := make([]Notification, 0, len(contacts))
	for _, gc := range contacts {
		if !gc.OptedIn(tmpl) {
			continue
		}
		n, created, err := svc.getOrCreate(ctx, gc, tmpl, ev, day)
		if err != nil {
			// one guardian's failure never blocks the others
			svc.logger.Error(fmt.Sprintf("creating %q notification for guardian %s: %v", tmpl, gc.GuardianID, err), err)
			continue
		}
		if created {
			svc.enqueue(ctx, n, gc.Address)
		}
		notifs = append(notifs, n)
	}
	return notifs, nil
}

// getOrCreate is the dedup gate: existence check first, then insert with the
// uniqueness constraint as the final race-arbiter.
func (svc *Service) getOrCreate(ctx context.Context, gc GuardianContact, tmpl Template, ev attendance.Event, day time.Time) (Notification, bool, error) {
	key := DedupKey{
		GuardianID: gc.GuardianID,
		Channel:    gc.Channel,
		Template:   tmpl,
		ContextID:  ev.StudentID,
		Date:       day,
	}

	n, err := svc.repo.GetAttendanceNotification(ctx, key)
	if err == nil {
		metrics.NotificationsDeduplicated.Inc()
		return n, false, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Notification{}, false, errors.Wrap(err, "checking for existing notification")
	}

	now := nowFunc().UTC()
	n = Notification{
		GuardianID:       key.GuardianID,
		Channel:          key.Channel,
		Template:         key.Template,
		ContextID:        key.ContextID,
		NotificationDate: key.Date,
		Status:           StatusQueued,
		Payload:          attendancePayload(ev),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	n, err = svc.repo.CreateNotification(ctx, n)
	if errors.Cause(err) == ErrDuplicate {
		// a concurrent trigger won the race; fetch theirs, enqueue nothing
		metrics.NotificationsDeduplicated.Inc()
		n, err = svc.repo.GetAttendanceNotification(ctx, key)
		return n, false, errors.Wrap(err, "fetching racing notification")
	}
	if err != nil {
		return Notification{}, false, errors.Wrap(err, "inserting notification")
	}

	metrics.NotificationsCreated.WithLabelValues(string(n.Channel), string(n.Template)).Inc()
	return n, true, nil
}

// Create inserts and enqueues a non-attendance notification (broadcasts,
// threshold alerts). These skip the dedup gate.
func (svc *Service) Create(ctx context.Context, n Notification, recipient string) (Notification, error) {
	if n.Template.IsAttendance() {
		return Notification{}, errors.Errorf("template %q must go through the attendance trigger", n.Template)
	}

	now := nowFunc().UTC()
	n.Status = StatusQueued
	n.CreatedAt = now
	n.UpdatedAt = now

	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return Notification{}, errors.Wrap(err, "inserting notification")
	}

	metrics.NotificationsCreated.WithLabelValues(string(n.Channel), string(n.Template)).Inc()
	svc.enqueue(ctx, n, recipient)
	return n, nil
}

// enqueue hands the delivery job off best-effort: on failure the notification
// stays `queued` and is picked up by the external reconciliation sweep.
func (svc *Service) enqueue(ctx context.Context, n Notification, recipient string) {
	job := core.DeliveryJob{
		JobType:        n.Channel.JobType(),
		NotificationID: n.ID,
		Recipient:      recipient,
		Template:       string(n.Template),
		Payload:        n.Payload.JSON,
	}
	if err := svc.queue.Enqueue(ctx, job); err != nil {
		metrics.DeliveryEnqueueFailures.Inc()
		svc.logger.Error(fmt.Sprintf("enqueueing delivery for notification %s: %v", n.ID, err), err)
	}
}

func attendancePayload(ev attendance.Event) null.JSON {
	data, err := json.Marshal(map[string]interface{}{
		"event_id":    ev.ID,
		"student_id":  ev.StudentID,
		"event_type":  ev.Type,
		"occurred_at": ev.OccurredAt,
		"gate_id":     ev.GateID,
	})
	if err != nil {
		return null.JSON{}
	}
	return null.JSONFrom(data)
}
