package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"challan-ledger/internal/domain"
)

type AuditFilter struct {
	ChallanID   *string
	UserID      *int64
	Event       *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append is the only write; the audit trail is never updated or deleted.
func (r *AuditRepository) Append(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO challan_audit (challan_id, user_id, event, comment, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, e.ChallanID, e.UserID, e.Event, e.Comment, e.Payload)
	if err != nil {
		return &domain.StorageError{Op: "insert audit entry", Err: err}
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, f AuditFilter) ([]domain.AuditEntry, error) {
	base := `
		SELECT a.id, a.challan_id, a.user_id, a.event, a.comment, a.payload, a.created_at,
			c.number AS challan_number,
			trim(concat(s.first_name, ' ', s.last_name)) AS student_name,
			u.username AS user_name
		FROM challan_audit a
		JOIN challans c ON c.id = a.challan_id
		JOIN students s ON s.id = c.student_id
		LEFT JOIN users u ON u.id = a.user_id
	`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.ChallanID != nil && *f.ChallanID != "" {
		where = append(where, "a.challan_id = $"+strconv.Itoa(i))
		args = append(args, *f.ChallanID)
		i++
	}

	if f.UserID != nil {
		where = append(where, "a.user_id = $"+strconv.Itoa(i))
		args = append(args, *f.UserID)
		i++
	}

	if f.Event != nil && *f.Event != "" {
		where = append(where, "a.event = $"+strconv.Itoa(i))
		args = append(args, *f.Event)
		i++
	}

	if f.CreatedFrom != nil {
		where = append(where, "a.created_at >= $"+strconv.Itoa(i))
		args = append(args, *f.CreatedFrom)
		i++
	}

	if f.CreatedTo != nil {
		where = append(where, "a.created_at <= $"+strconv.Itoa(i))
		args = append(args, *f.CreatedTo)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY a.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "list audit entries", Err: err}
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(
			&e.ID, &e.ChallanID, &e.UserID, &e.Event, &e.Comment, &e.Payload, &e.CreatedAt,
			&e.ChallanNumber, &e.StudentName, &e.UserName,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan audit entry", Err: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate audit entries", Err: err}
	}
	return out, nil
}
