package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/moffermann/school-attendance/core/notification"
)

// NotificationRepository is the in-memory notification.Repository. The byKey
// map plays the role of the partial unique index: inserting an attendance
// notification whose dedup key is taken fails with ErrDuplicate.
type NotificationRepository struct {
	mu    sync.Mutex
	byKey map[notification.DedupKey]notification.Notification
	all   []notification.Notification

	// CreateHook, when set, runs before every insert; tests use it to
	// simulate constraint races and storage failures.
	CreateHook func(n notification.Notification) error
}

var _ notification.Repository = (*NotificationRepository)(nil) // interface compliance check

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{byKey: make(map[notification.DedupKey]notification.Notification)}
}

func dedupKey(n notification.Notification) notification.DedupKey {
	return notification.DedupKey{
		GuardianID: n.GuardianID,
		Channel:    n.Channel,
		Template:   n.Template,
		ContextID:  n.ContextID,
		Date:       n.NotificationDate,
	}
}

func (repo *NotificationRepository) GetAttendanceNotification(_ context.Context, key notification.DedupKey) (notification.Notification, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	n, ok := repo.byKey[key]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	return n, nil
}

func (repo *NotificationRepository) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	if repo.CreateHook != nil {
		if err := repo.CreateHook(n); err != nil {
			return notification.Notification{}, err
		}
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	n.ID = uuid.New().String()
	if n.Template.IsAttendance() {
		key := dedupKey(n)
		if _, exists := repo.byKey[key]; exists {
			return notification.Notification{}, notification.ErrDuplicate
		}
		repo.byKey[key] = n
	}
	repo.all = append(repo.all, n)
	return n, nil
}

// All returns every stored notification; test helper.
func (repo *NotificationRepository) All() []notification.Notification {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	all := make([]notification.Notification, len(repo.all))
	copy(all, repo.all)
	return all
}
