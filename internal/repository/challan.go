package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"challan-ledger/internal/domain"
)

type ChallansFilter struct {
	StudentID  *string
	ClassName  *string
	Status     *domain.ChallanStatus
	IssuedFrom *time.Time
	IssuedTo   *time.Time
}

type ChallanRepository struct {
	db *sql.DB
}

func NewChallanRepository(db *sql.DB) *ChallanRepository {
	return &ChallanRepository{db: db}
}

// CreateWithItems persists a challan and its line items in one transaction so
// a challan without items (or orphaned items) is never observable.
func (r *ChallanRepository) CreateWithItems(ctx context.Context, ch *domain.Challan, items []domain.LineItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StorageError{Op: "begin create challan", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO challans (id, number, student_id, class_name, section, issue_date, due_date,
			gross_amount, discount, total_amount, status, version, issued_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, now(), now())
	`,
		ch.ID, ch.Number, ch.StudentID, ch.ClassName, ch.Section, ch.IssueDate, ch.DueDate,
		ch.GrossAmount, ch.Discount, ch.TotalAmount, ch.Status, ch.IssuedBy,
	)
	if err != nil {
		return &domain.StorageError{Op: "insert challan", Err: err}
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO challan_items (id, challan_id, fee_type, amount)
			VALUES ($1, $2, $3, $4)
		`, item.ID, ch.ID, item.FeeType, item.Amount)
		if err != nil {
			return &domain.StorageError{Op: "insert challan item", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Op: "commit create challan", Err: err}
	}
	return nil
}

// GetDetails loads a challan together with its line items and the full set of
// payments recorded against it. Paid amount and balance due are derived from
// this set, never from a cached column.
func (r *ChallanRepository) GetDetails(ctx context.Context, id string) (*domain.ChallanDetails, error) {
	var d domain.ChallanDetails

	err := r.db.QueryRowContext(ctx, `
		SELECT id, number, student_id, class_name, section, issue_date, due_date,
			gross_amount, discount, total_amount, status, version, issued_by, created_at, updated_at
		FROM challans
		WHERE id = $1
	`, id).Scan(
		&d.ID, &d.Number, &d.StudentID, &d.ClassName, &d.Section, &d.IssueDate, &d.DueDate,
		&d.GrossAmount, &d.Discount, &d.TotalAmount, &d.Status, &d.Version, &d.IssuedBy,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrChallanNotFound
		}
		return nil, &domain.StorageError{Op: "select challan", Err: err}
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, challan_id, fee_type, amount
		FROM challan_items
		WHERE challan_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, &domain.StorageError{Op: "select challan items", Err: err}
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.LineItem
		if err := itemRows.Scan(&item.ID, &item.ChallanID, &item.FeeType, &item.Amount); err != nil {
			return nil, &domain.StorageError{Op: "scan challan item", Err: err}
		}
		d.Items = append(d.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate challan items", Err: err}
	}

	payRows, err := r.db.QueryContext(ctx, `
		SELECT id, challan_id, student_id, amount_paid, method, cheque_number, bank_name,
			transaction_id, receipt_number, payment_date, recorded_by, created_at
		FROM payments
		WHERE challan_id = $1
		ORDER BY payment_date, created_at
	`, id)
	if err != nil {
		return nil, &domain.StorageError{Op: "select payments", Err: err}
	}
	defer payRows.Close()

	for payRows.Next() {
		var p domain.Payment
		if err := payRows.Scan(
			&p.ID, &p.ChallanID, &p.StudentID, &p.AmountPaid, &p.Method, &p.ChequeNumber,
			&p.BankName, &p.TransactionID, &p.ReceiptNumber, &p.PaymentDate, &p.RecordedBy,
			&p.CreatedAt,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan payment", Err: err}
		}
		d.Payments = append(d.Payments, p)
	}
	if err := payRows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate payments", Err: err}
	}

	return &d, nil
}

// UpdateStatus writes a new status guarded by the optimistic version column.
// A zero-row update means another writer got there first.
func (r *ChallanRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status domain.ChallanStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE challans
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
	`, status, id, expectedVersion)
	if err != nil {
		return &domain.StorageError{Op: "update challan status", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "update challan status", Err: err}
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

func buildChallansWhere(f ChallansFilter, startIndex int, base []string, args []any) (string, []any) {
	where := append([]string{}, base...)
	i := startIndex

	if f.StudentID != nil && *f.StudentID != "" {
		where = append(where, "c.student_id = $"+strconv.Itoa(i))
		args = append(args, *f.StudentID)
		i++
	}

	if f.ClassName != nil && *f.ClassName != "" {
		where = append(where, "c.class_name = $"+strconv.Itoa(i))
		args = append(args, *f.ClassName)
		i++
	}

	if f.Status != nil {
		where = append(where, "c.status = $"+strconv.Itoa(i))
		args = append(args, *f.Status)
		i++
	}

	if f.IssuedFrom != nil {
		where = append(where, "c.issue_date >= $"+strconv.Itoa(i))
		args = append(args, *f.IssuedFrom)
		i++
	}

	if f.IssuedTo != nil {
		where = append(where, "c.issue_date <= $"+strconv.Itoa(i))
		args = append(args, *f.IssuedTo)
		i++
	}

	return strings.Join(where, " AND "), args
}

// List returns challan summaries with the paid amount rolled up per challan.
func (r *ChallanRepository) List(ctx context.Context, f ChallansFilter) ([]domain.ChallanSummary, error) {
	base := `
		SELECT c.id, c.number, c.student_id, c.class_name, c.section, c.issue_date, c.due_date,
			c.gross_amount, c.discount, c.total_amount, c.status, c.version, c.issued_by,
			c.created_at, c.updated_at,
			trim(concat(s.first_name, ' ', s.last_name)) AS student_name,
			COALESCE(p.paid, 0) AS paid_amount
		FROM challans c
		JOIN students s ON s.id = c.student_id
		LEFT JOIN (
			SELECT challan_id, SUM(amount_paid) AS paid
			FROM payments
			GROUP BY challan_id
		) p ON p.challan_id = c.id
	`

	where, args := buildChallansWhere(f, 1, []string{"1=1"}, []any{})
	query := base + " WHERE " + where + " ORDER BY c.issue_date DESC, c.number"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "list challans", Err: err}
	}
	defer rows.Close()

	var out []domain.ChallanSummary
	for rows.Next() {
		var c domain.ChallanSummary
		if err := rows.Scan(
			&c.ID, &c.Number, &c.StudentID, &c.ClassName, &c.Section, &c.IssueDate, &c.DueDate,
			&c.GrossAmount, &c.Discount, &c.TotalAmount, &c.Status, &c.Version, &c.IssuedBy,
			&c.CreatedAt, &c.UpdatedAt, &c.StudentName, &c.PaidAmount,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan challan summary", Err: err}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate challans", Err: err}
	}
	return out, nil
}

// HasMoreThan guards exports against unbounded result sets.
func (r *ChallanRepository) HasMoreThan(ctx context.Context, limit int64, f ChallansFilter) (bool, error) {
	base := `SELECT COUNT(*) > $1 FROM challans c`

	where, args := buildChallansWhere(f, 2, []string{"1=1"}, []any{limit})
	query := base + " WHERE " + where

	var tooMany bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&tooMany); err != nil {
		return false, &domain.StorageError{Op: "count challans", Err: err}
	}
	return tooMany, nil
}

// ListPastDuePending returns ids and versions of pending challans whose due
// date has passed, for the overdue sweep.
func (r *ChallanRepository) ListPastDuePending(ctx context.Context, asOf time.Time) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version
		FROM challans
		WHERE status = $1 AND due_date < $2
	`, domain.StatusPending, asOf)
	if err != nil {
		return nil, &domain.StorageError{Op: "list past-due challans", Err: err}
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			id      string
			version int64
		)
		if err := rows.Scan(&id, &version); err != nil {
			return nil, &domain.StorageError{Op: "scan past-due challan", Err: err}
		}
		out[id] = version
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate past-due challans", Err: err}
	}
	return out, nil
}
