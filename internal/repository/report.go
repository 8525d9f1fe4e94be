package repository

import (
	"context"

	"challan-ledger/internal/domain"
)

// Rollup rows are pure projections over the ledger; nothing here mutates
// state.

type StatusCount struct {
	Status domain.ChallanStatus
	Count  int64
}

type ClassRollup struct {
	ClassName   string  `json:"class_name"`
	Section     *string `json:"section"`
	Challans    int64   `json:"challans"`
	TotalBilled int64   `json:"total_billed"`
	TotalPaid   int64   `json:"total_paid"`
	Outstanding int64   `json:"outstanding"`
}

type OutstandingSummary struct {
	Challans    int64
	TotalBilled int64
	TotalPaid   int64
	Outstanding int64
}

// Outstanding sums billed vs paid over non-cancelled challans matching the
// filter. Per-challan paid is capped at the challan total so the outstanding
// figure can never go negative.
func (r *ChallanRepository) Outstanding(ctx context.Context, f ChallansFilter) (*OutstandingSummary, error) {
	base := `
		SELECT COUNT(*),
			COALESCE(SUM(c.total_amount), 0),
			COALESCE(SUM(LEAST(COALESCE(p.paid, 0), c.total_amount)), 0),
			COALESCE(SUM(GREATEST(c.total_amount - COALESCE(p.paid, 0), 0)), 0)
		FROM challans c
		LEFT JOIN (
			SELECT challan_id, SUM(amount_paid) AS paid
			FROM payments
			GROUP BY challan_id
		) p ON p.challan_id = c.id
	`

	where, args := buildChallansWhere(f, 2, []string{"c.status <> $1"}, []any{domain.StatusCancelled})
	query := base + " WHERE " + where

	var s OutstandingSummary
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.Challans, &s.TotalBilled, &s.TotalPaid, &s.Outstanding,
	); err != nil {
		return nil, &domain.StorageError{Op: "outstanding summary", Err: err}
	}
	return &s, nil
}

func (r *ChallanRepository) StatusCounts(ctx context.Context, f ChallansFilter) ([]StatusCount, error) {
	base := `SELECT c.status, COUNT(*) FROM challans c`

	where, args := buildChallansWhere(f, 1, []string{"1=1"}, []any{})
	query := base + " WHERE " + where + " GROUP BY c.status ORDER BY c.status"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "status counts", Err: err}
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, &domain.StorageError{Op: "scan status count", Err: err}
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate status counts", Err: err}
	}
	return out, nil
}

func (r *ChallanRepository) ClassRollups(ctx context.Context, f ChallansFilter) ([]ClassRollup, error) {
	base := `
		SELECT c.class_name, c.section, COUNT(*),
			COALESCE(SUM(c.total_amount), 0),
			COALESCE(SUM(LEAST(COALESCE(p.paid, 0), c.total_amount)), 0),
			COALESCE(SUM(GREATEST(c.total_amount - COALESCE(p.paid, 0), 0)), 0)
		FROM challans c
		LEFT JOIN (
			SELECT challan_id, SUM(amount_paid) AS paid
			FROM payments
			GROUP BY challan_id
		) p ON p.challan_id = c.id
	`

	where, args := buildChallansWhere(f, 2, []string{"c.status <> $1"}, []any{domain.StatusCancelled})
	query := base + " WHERE " + where + " GROUP BY c.class_name, c.section ORDER BY c.class_name, c.section"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "class rollups", Err: err}
	}
	defer rows.Close()

	var out []ClassRollup
	for rows.Next() {
		var cr ClassRollup
		if err := rows.Scan(
			&cr.ClassName, &cr.Section, &cr.Challans,
			&cr.TotalBilled, &cr.TotalPaid, &cr.Outstanding,
		); err != nil {
			return nil, &domain.StorageError{Op: "scan class rollup", Err: err}
		}
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate class rollups", Err: err}
	}
	return out, nil
}
