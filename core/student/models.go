package student

import "time"

// Student is the read-only directory view of a student. The engine never
// mutates students; the surrounding CRUD layer owns them.
type Student struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Grade     string    `db:"grade" json:"grade"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
}
