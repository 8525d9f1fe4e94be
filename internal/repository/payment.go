package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"challan-ledger/internal/domain"
)

type PaymentsFilter struct {
	ChallanID *string
	StudentID *string
	Method    *domain.PaymentMethod
	PaidFrom  *time.Time
	PaidTo    *time.Time
}

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Append inserts a payment and moves the challan to newStatus in a single
// transaction. The challan row is bumped with an optimistic version guard;
// losing the race surfaces as domain.ErrConflict so the caller re-reads the
// balance and retries the whole recording.
func (r *PaymentRepository) Append(ctx context.Context, p domain.Payment, expectedVersion int64, newStatus domain.ChallanStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StorageError{Op: "begin append payment", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE challans
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
	`, newStatus, p.ChallanID, expectedVersion)
	if err != nil {
		return &domain.StorageError{Op: "bump challan version", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "bump challan version", Err: err}
	}
	if n == 0 {
		return domain.ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, challan_id, student_id, amount_paid, method, cheque_number,
			bank_name, transaction_id, receipt_number, payment_date, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
	`,
		p.ID, p.ChallanID, p.StudentID, p.AmountPaid, p.Method, p.ChequeNumber,
		p.BankName, p.TransactionID, p.ReceiptNumber, p.PaymentDate, p.RecordedBy,
	)
	if err != nil {
		return &domain.StorageError{Op: "insert payment", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Op: "commit append payment", Err: err}
	}
	return nil
}

func buildPaymentsWhere(f PaymentsFilter, startIndex int, base []string, args []any) (string, []any) {
	where := append([]string{}, base...)
	i := startIndex

	if f.ChallanID != nil && *f.ChallanID != "" {
		where = append(where, "p.challan_id = $"+strconv.Itoa(i))
		args = append(args, *f.ChallanID)
		i++
	}

	if f.StudentID != nil && *f.StudentID != "" {
		where = append(where, "p.student_id = $"+strconv.Itoa(i))
		args = append(args, *f.StudentID)
		i++
	}

	if f.Method != nil {
		where = append(where, "p.method = $"+strconv.Itoa(i))
		args = append(args, *f.Method)
		i++
	}

	if f.PaidFrom != nil {
		where = append(where, "p.payment_date >= $"+strconv.Itoa(i))
		args = append(args, *f.PaidFrom)
		i++
	}

	if f.PaidTo != nil {
		where = append(where, "p.payment_date <= $"+strconv.Itoa(i))
		args = append(args, *f.PaidTo)
		i++
	}

	return " WHERE " + strings.Join(where, " AND "), args
}

// List returns payments with the challan number and student name joined in
// for listings and exports.
func (r *PaymentRepository) List(ctx context.Context, f PaymentsFilter) ([]domain.Payment, error) {
	base := `
		SELECT p.id, p.challan_id, p.student_id, p.amount_paid, p.method, p.cheque_number,
			p.bank_name, p.transaction_id, p.receipt_number, p.payment_date, p.recorded_by,
			p.created_at,
			c.number AS challan_number,
			trim(concat(s.first_name, ' ', s.last_name)) AS student_name,
			c.class_name,
			u.username AS recorded_by_name
		FROM payments p
		JOIN challans c ON c.id = p.challan_id
		JOIN students s ON s.id = p.student_id
		LEFT JOIN users u ON u.id = p.recorded_by
	`

	where, args := buildPaymentsWhere(f, 1, []string{"1=1"}, []any{})
	query := base + where + " ORDER BY p.payment_date DESC, p.receipt_number"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "list payments", Err: err}
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(
			&p.ID, &p.ChallanID, &p.StudentID, &p.AmountPaid, &p.Method, &p.ChequeNumber,
			&p.BankName, &p.TransactionID, &p.ReceiptNumber, &p.PaymentDate, &p.RecordedBy,
			&p.CreatedAt, &p.ChallanNumber, &p.StudentName, &p.ClassName, &p.RecordedByName,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan payment", Err: err}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate payments", Err: err}
	}
	return out, nil
}

func (r *PaymentRepository) HasMoreThan(ctx context.Context, limit int64, f PaymentsFilter) (bool, error) {
	base := `SELECT COUNT(*) > $1 FROM payments p`

	where, args := buildPaymentsWhere(f, 2, []string{"1=1"}, []any{limit})
	query := base + where

	var tooMany bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&tooMany); err != nil {
		return false, &domain.StorageError{Op: "count payments", Err: err}
	}
	return tooMany, nil
}
