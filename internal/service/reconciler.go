package service

import (
	"context"
	"errors"
	"log"
	"time"

	"challan-ledger/internal/domain"
)

// Reconcile derives a challan's status from its ledger and due date. Pure
// function of its inputs, so calling it twice with unchanged inputs yields
// the same status.
//
// Full payment always wins over lateness: a challan whose payments cover the
// total is paid even when the due date has passed. Overdue is advisory only;
// it never blocks further collection.
func Reconcile(totalAmount, paidAmount int64, dueDate, today time.Time, current domain.ChallanStatus) domain.ChallanStatus {
	if current == domain.StatusCancelled {
		return domain.StatusCancelled
	}
	if paidAmount >= totalAmount {
		return domain.StatusPaid
	}
	if current == domain.StatusPaid {
		// paid is terminal except for manual cancellation
		return domain.StatusPaid
	}
	if pastDue(dueDate, today) {
		return domain.StatusOverdue
	}
	return domain.StatusPending
}

// pastDue compares calendar days, not instants: a challan is overdue starting
// the day after its due date.
func pastDue(dueDate, today time.Time) bool {
	dy, dm, dd := dueDate.Date()
	ty, tm, td := today.Date()
	due := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	now := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return now.After(due)
}

type ReconcileStore interface {
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status domain.ChallanStatus) error
	ListPastDuePending(ctx context.Context, asOf time.Time) (map[string]int64, error)
}

type ReconcileService struct {
	challans ReconcileStore
	now      func() time.Time
}

func NewReconcileService(challans ReconcileStore) *ReconcileService {
	return &ReconcileService{challans: challans, now: time.Now}
}

// Apply re-derives the status of a loaded challan and persists it only when
// it changed, so repeated calls with unchanged inputs cause no extra writes.
// A version conflict is not an error here: the status is advisory and the
// racing writer has already re-derived it.
func (s *ReconcileService) Apply(ctx context.Context, d *domain.ChallanDetails) (domain.ChallanStatus, error) {
	next := Reconcile(d.TotalAmount, d.PaidAmount(), d.DueDate, s.now(), d.Status)
	if next == d.Status {
		return next, nil
	}

	if err := s.challans.UpdateStatus(ctx, d.ID, d.Version, next); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			d.Status = next
			return next, nil
		}
		return d.Status, err
	}

	d.Status = next
	d.Version++
	return next, nil
}

// SweepOverdue flips pending challans past their due date to overdue. Runs
// from a ticker in main; individual conflicts are skipped, the next sweep
// picks them up.
func (s *ReconcileService) SweepOverdue(ctx context.Context) (int, error) {
	pending, err := s.challans.ListPastDuePending(ctx, s.now())
	if err != nil {
		return 0, err
	}

	flipped := 0
	for id, version := range pending {
		if err := s.challans.UpdateStatus(ctx, id, version, domain.StatusOverdue); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			log.Printf("[SWEEP] challan %s: %v", id, err)
			continue
		}
		flipped++
	}
	return flipped, nil
}
