package service

import (
	"context"
	"testing"
	"time"

	"challan-ledger/internal/domain"

	"github.com/google/uuid"
)

func TestReconcile(t *testing.T) {
	due := date(2026, time.March, 10)

	tests := []struct {
		name    string
		total   int64
		paid    int64
		today   time.Time
		current domain.ChallanStatus
		want    domain.ChallanStatus
	}{
		{
			name:  "unpaid before due date stays pending",
			total: 10000, paid: 0,
			today:   date(2026, time.March, 1),
			current: domain.StatusPending,
			want:    domain.StatusPending,
		},
		{
			name:  "partially paid before due date stays pending",
			total: 10000, paid: 4000,
			today:   date(2026, time.March, 1),
			current: domain.StatusPending,
			want:    domain.StatusPending,
		},
		{
			name:  "on the due date itself still pending",
			total: 10000, paid: 0,
			today:   date(2026, time.March, 10),
			current: domain.StatusPending,
			want:    domain.StatusPending,
		},
		{
			name:  "day after due date flips to overdue",
			total: 10000, paid: 0,
			today:   date(2026, time.March, 11),
			current: domain.StatusPending,
			want:    domain.StatusOverdue,
		},
		{
			name:  "full payment wins over lateness",
			total: 10000, paid: 10000,
			today:   date(2026, time.April, 1),
			current: domain.StatusOverdue,
			want:    domain.StatusPaid,
		},
		{
			name:  "partial payment after due date stays overdue",
			total: 10000, paid: 9999,
			today:   date(2026, time.April, 1),
			current: domain.StatusOverdue,
			want:    domain.StatusOverdue,
		},
		{
			name:  "paid is terminal",
			total: 10000, paid: 10000,
			today:   date(2026, time.April, 1),
			current: domain.StatusPaid,
			want:    domain.StatusPaid,
		},
		{
			name:  "cancelled is sticky regardless of payments",
			total: 10000, paid: 10000,
			today:   date(2026, time.March, 1),
			current: domain.StatusCancelled,
			want:    domain.StatusCancelled,
		},
		{
			name:  "zero total counts as paid",
			total: 0, paid: 0,
			today:   date(2026, time.March, 1),
			current: domain.StatusPending,
			want:    domain.StatusPaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.total, tt.paid, due, tt.today, tt.current)
			if got != tt.want {
				t.Errorf("Reconcile() = %s, want %s", got, tt.want)
			}
			// same inputs, same answer
			if again := Reconcile(tt.total, tt.paid, due, tt.today, tt.current); again != got {
				t.Errorf("Reconcile() not deterministic: %s then %s", got, again)
			}
		})
	}
}

func TestReconcile_DueDateWithTimeComponent(t *testing.T) {
	// the due date is a calendar day; an evening timestamp on that day is
	// not yet past due
	due := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	today := time.Date(2026, time.March, 10, 23, 30, 0, 0, time.UTC)

	got := Reconcile(10000, 0, due, today, domain.StatusPending)
	if got != domain.StatusPending {
		t.Errorf("Reconcile() = %s, want pending on the due day", got)
	}
}

func TestApply_NoWriteWhenUnchanged(t *testing.T) {
	ledger := newFakeLedger()
	id := uuid.NewString()
	ledger.seed(domain.Challan{
		ID:          id,
		TotalAmount: 10000,
		DueDate:     date(2026, time.March, 10),
		Status:      domain.StatusPending,
	})

	svc := NewReconcileService(ledger)
	svc.now = func() time.Time { return date(2026, time.March, 1) }

	d, err := ledger.GetDetails(context.Background(), id)
	if err != nil {
		t.Fatalf("GetDetails: %v", err)
	}

	status, err := svc.Apply(context.Background(), d)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if status != domain.StatusPending {
		t.Errorf("Apply() = %s, want pending", status)
	}
	if ledger.statusWrites != 0 {
		t.Errorf("Apply wrote status %d times for an unchanged challan", ledger.statusWrites)
	}
}

func TestApply_PersistsOverdueOnRead(t *testing.T) {
	ledger := newFakeLedger()
	id := uuid.NewString()
	ledger.seed(domain.Challan{
		ID:          id,
		TotalAmount: 10000,
		DueDate:     date(2026, time.March, 10),
		Status:      domain.StatusPending,
	})

	svc := NewReconcileService(ledger)
	svc.now = func() time.Time { return date(2026, time.March, 15) }

	d, _ := ledger.GetDetails(context.Background(), id)
	status, err := svc.Apply(context.Background(), d)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if status != domain.StatusOverdue {
		t.Errorf("Apply() = %s, want overdue", status)
	}

	stored := ledger.challan(id)
	if stored.Status != domain.StatusOverdue {
		t.Errorf("stored status = %s, want overdue", stored.Status)
	}
	if d.Version != stored.Version {
		t.Errorf("in-memory version %d diverged from stored %d", d.Version, stored.Version)
	}
}

func TestApply_ToleratesVersionConflict(t *testing.T) {
	ledger := newFakeLedger()
	id := uuid.NewString()
	ledger.seed(domain.Challan{
		ID:          id,
		TotalAmount: 10000,
		DueDate:     date(2026, time.March, 10),
		Status:      domain.StatusPending,
	})

	svc := NewReconcileService(ledger)
	svc.now = func() time.Time { return date(2026, time.March, 15) }

	d, _ := ledger.GetDetails(context.Background(), id)
	// another writer bumps the version behind our back
	if err := ledger.UpdateStatus(context.Background(), id, 0, domain.StatusPending); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	status, err := svc.Apply(context.Background(), d)
	if err != nil {
		t.Fatalf("Apply should swallow the conflict, got %v", err)
	}
	if status != domain.StatusOverdue {
		t.Errorf("Apply() = %s, want derived overdue", status)
	}
}

func TestSweepOverdue(t *testing.T) {
	ledger := newFakeLedger()

	pastDueA := uuid.NewString()
	pastDueB := uuid.NewString()
	notDue := uuid.NewString()
	alreadyPaid := uuid.NewString()

	ledger.seed(domain.Challan{ID: pastDueA, TotalAmount: 5000, DueDate: date(2026, time.March, 1), Status: domain.StatusPending})
	ledger.seed(domain.Challan{ID: pastDueB, TotalAmount: 5000, DueDate: date(2026, time.February, 15), Status: domain.StatusPending})
	ledger.seed(domain.Challan{ID: notDue, TotalAmount: 5000, DueDate: date(2026, time.April, 1), Status: domain.StatusPending})
	ledger.seed(domain.Challan{ID: alreadyPaid, TotalAmount: 5000, DueDate: date(2026, time.March, 1), Status: domain.StatusPaid})

	svc := NewReconcileService(ledger)
	svc.now = func() time.Time { return date(2026, time.March, 20) }

	flipped, err := svc.SweepOverdue(context.Background())
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if flipped != 2 {
		t.Errorf("SweepOverdue flipped %d challans, want 2", flipped)
	}

	if got := ledger.challan(pastDueA).Status; got != domain.StatusOverdue {
		t.Errorf("challan A status = %s, want overdue", got)
	}
	if got := ledger.challan(pastDueB).Status; got != domain.StatusOverdue {
		t.Errorf("challan B status = %s, want overdue", got)
	}
	if got := ledger.challan(notDue).Status; got != domain.StatusPending {
		t.Errorf("future challan status = %s, want pending", got)
	}
	if got := ledger.challan(alreadyPaid).Status; got != domain.StatusPaid {
		t.Errorf("paid challan status = %s, want paid", got)
	}
}
