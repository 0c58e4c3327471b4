package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/moffermann/school-attendance/core/attendance"
	"github.com/moffermann/school-attendance/core/notification"
	"github.com/moffermann/school-attendance/core/student"
)

// directoryRepository reads the student/guardian tables owned by the
// surrounding CRUD layer. The engine only ever reads them.
type directoryRepository struct {
	db *sqlx.DB
}

var (
	_ attendance.Directory   = (*directoryRepository)(nil)
	_ notification.Directory = (*directoryRepository)(nil)
)

func NewDirectoryRepository(db *sql.DB) *directoryRepository {
	return &directoryRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo directoryRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	q := `SELECT id, name, grade, is_active, created_at FROM student WHERE id = $1 AND is_active`

	var st student.Student
	if err := repo.db.GetContext(ctx, &st, q, id); err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, attendance.ErrStudentNotFound
		}
		return student.Student{}, errors.Wrap(err, "querying student")
	}
	return st, nil
}

// guardianContactRow carries the pq array type out of the join before mapping
// to the domain view.
type guardianContactRow struct {
	GuardianID   string         `db:"guardian_id"`
	GuardianName string         `db:"guardian_name"`
	Channel      string         `db:"channel"`
	Address      string         `db:"address"`
	Templates    pq.StringArray `db:"opt_in_templates"`
}

func (repo directoryRepository) GuardianContacts(ctx context.Context, studentID string) ([]notification.GuardianContact, error) {
	q := `SELECT g.id AS guardian_id, g.name AS guardian_name, gc.channel, gc.address, gc.opt_in_templates
		FROM guardian_contact gc
		JOIN guardian g ON g.id = gc.guardian_id
		WHERE gc.student_id = $1 AND gc.enabled
		ORDER BY g.id, gc.channel`

	rows := make([]guardianContactRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying guardian contacts")
	}

	contacts := make([]notification.GuardianContact, 0, len(rows))
	for _, row := range rows {
		tmpls := make([]notification.Template, 0, len(row.Templates))
		for _, t := range row.Templates {
			tmpls = append(tmpls, notification.Template(t))
		}
		contacts = append(contacts, notification.GuardianContact{
			GuardianID:   row.GuardianID,
			GuardianName: row.GuardianName,
			Channel:      notification.Channel(row.Channel),
			Address:      row.Address,
			Templates:    tmpls,
		})
	}
	return contacts, nil
}
