package repository

import (
	"context"
	"database/sql"
	"errors"

	"challan-ledger/internal/domain"
)

type StudentRepository struct {
	db *sql.DB
}

func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID resolves the student plus their current class/section, which the
// builder denormalizes onto the challan at issue time.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*domain.Student, error) {
	var s domain.Student

	err := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.first_name, s.last_name, s.middle_name, s.admission_number,
			s.class_name, s.section, s.guardian_name, s.guardian_phone
		FROM students s
		WHERE s.id = $1 AND s.deleted_at IS NULL
	`, id).Scan(
		&s.ID, &s.FirstName, &s.LastName, &s.MiddleName, &s.AdmissionNumber,
		&s.ClassName, &s.Section, &s.GuardianName, &s.GuardianPhone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStudentNotFound
		}
		return nil, &domain.StorageError{Op: "select student", Err: err}
	}
	return &s, nil
}
