package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"challan-ledger/internal/domain"
	"challan-ledger/internal/repository"
)

// fakeLedger is an in-memory stand-in for the postgres repositories. It
// enforces the same optimistic version check as the real store so conflict
// paths are testable.
type fakeLedger struct {
	mu       sync.Mutex
	challans map[string]*domain.Challan
	items    map[string][]domain.LineItem
	payments map[string][]domain.Payment

	statusWrites int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		challans: make(map[string]*domain.Challan),
		items:    make(map[string][]domain.LineItem),
		payments: make(map[string][]domain.Payment),
	}
}

func (f *fakeLedger) CreateWithItems(_ context.Context, ch *domain.Challan, items []domain.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *ch
	f.challans[ch.ID] = &cp
	f.items[ch.ID] = append([]domain.LineItem(nil), items...)
	return nil
}

func (f *fakeLedger) GetDetails(_ context.Context, id string) (*domain.ChallanDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, ok := f.challans[id]
	if !ok {
		return nil, domain.ErrChallanNotFound
	}

	d := &domain.ChallanDetails{Challan: *ch}
	d.Items = append([]domain.LineItem(nil), f.items[id]...)
	d.Payments = append([]domain.Payment(nil), f.payments[id]...)
	return d, nil
}

func (f *fakeLedger) UpdateStatus(_ context.Context, id string, expectedVersion int64, status domain.ChallanStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, ok := f.challans[id]
	if !ok {
		return domain.ErrChallanNotFound
	}
	if ch.Version != expectedVersion {
		return domain.ErrConflict
	}

	ch.Status = status
	ch.Version++
	f.statusWrites++
	return nil
}

func (f *fakeLedger) Append(_ context.Context, p domain.Payment, expectedVersion int64, newStatus domain.ChallanStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, ok := f.challans[p.ChallanID]
	if !ok {
		return domain.ErrChallanNotFound
	}
	if ch.Version != expectedVersion {
		return domain.ErrConflict
	}

	ch.Status = newStatus
	ch.Version++
	f.payments[p.ChallanID] = append(f.payments[p.ChallanID], p)
	return nil
}

func (f *fakeLedger) ListPastDuePending(_ context.Context, asOf time.Time) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]int64)
	for id, ch := range f.challans {
		if ch.Status == domain.StatusPending && pastDue(ch.DueDate, asOf) {
			out[id] = ch.Version
		}
	}
	return out, nil
}

func (f *fakeLedger) seed(ch domain.Challan) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := ch
	f.challans[ch.ID] = &cp
}

func (f *fakeLedger) challan(id string) domain.Challan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.challans[id]
}

type fakeStudents struct {
	students map[string]*domain.Student
}

func (f *fakeStudents) FindByID(_ context.Context, id string) (*domain.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, domain.ErrStudentNotFound
	}
	return s, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (f *fakeAudit) Append(_ context.Context, e domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAudit) List(_ context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.AuditEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if filter.ChallanID != nil && e.ChallanID != *filter.ChallanID {
			continue
		}
		if filter.Event != nil && e.Event != *filter.Event {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeAudit) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Event)
	}
	return out
}

type fakeUsers struct {
	users map[int64]*domain.User
}

func (f *fakeUsers) FindUserByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
