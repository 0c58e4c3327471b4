package inmemdb

import (
	"context"
	"sync"

	"github.com/moffermann/school-attendance/core/attendance"
	"github.com/moffermann/school-attendance/core/notification"
	"github.com/moffermann/school-attendance/core/student"
)

// DirectoryRepository is the in-memory directory collaborator.
type DirectoryRepository struct {
	mu       sync.RWMutex
	students map[string]student.Student
	contacts map[string][]notification.GuardianContact
}

var (
	_ attendance.Directory   = (*DirectoryRepository)(nil)
	_ notification.Directory = (*DirectoryRepository)(nil)
)

func NewDirectoryRepository() *DirectoryRepository {
	return &DirectoryRepository{
		students: make(map[string]student.Student),
		contacts: make(map[string][]notification.GuardianContact),
	}
}

func (repo *DirectoryRepository) AddStudent(st student.Student) {
	repo.mu.Lock()
	repo.students[st.ID] = st
	repo.mu.Unlock()
}

func (repo *DirectoryRepository) AddContact(studentID string, gc notification.GuardianContact) {
	repo.mu.Lock()
	repo.contacts[studentID] = append(repo.contacts[studentID], gc)
	repo.mu.Unlock()
}

func (repo *DirectoryRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	st, ok := repo.students[id]
	if !ok || !st.IsActive {
		return student.Student{}, attendance.ErrStudentNotFound
	}
	return st, nil
}

func (repo *DirectoryRepository) GuardianContacts(_ context.Context, studentID string) ([]notification.GuardianContact, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	contacts := make([]notification.GuardianContact, len(repo.contacts[studentID]))
	copy(contacts, repo.contacts[studentID])
	return contacts, nil
}
