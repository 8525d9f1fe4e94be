package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"time"

	"challan-ledger/internal/clients"
	"challan-ledger/internal/domain"

	"github.com/google/uuid"
)

type PaymentStore interface {
	Append(ctx context.Context, p domain.Payment, expectedVersion int64, newStatus domain.ChallanStatus) error
}

type UserStore interface {
	FindUserByID(ctx context.Context, id int64) (*domain.User, error)
}

type PaymentInput struct {
	Amount int64
	Method domain.PaymentMethod

	ChequeNumber  *string
	BankName      *string
	TransactionID *string

	PaymentDate time.Time
}

// challanLocks serializes payment recording per challan within this process.
// The optimistic version check in the store covers writers in other
// processes; the mutex just keeps the common case (double submit from one
// collection screen) from ever reaching the conflict path.
type challanLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newChallanLocks() *challanLocks {
	return &challanLocks{m: make(map[string]*sync.Mutex)}
}

func (l *challanLocks) lock(id string) func() {
	l.mu.Lock()
	cl, ok := l.m[id]
	if !ok {
		cl = &sync.Mutex{}
		l.m[id] = cl
	}
	l.mu.Unlock()

	cl.Lock()
	return cl.Unlock
}

type CollectionService struct {
	challans ChallanStore
	payments PaymentStore
	audit    AuditStore
	users    UserStore
	ws       *clients.WebSocketClient

	locks *challanLocks
	now   func() time.Time
}

func NewCollectionService(challans ChallanStore, payments PaymentStore, audit AuditStore, users UserStore, ws *clients.WebSocketClient) *CollectionService {
	return &CollectionService{
		challans: challans,
		payments: payments,
		audit:    audit,
		users:    users,
		ws:       ws,
		locks:    newChallanLocks(),
		now:      time.Now,
	}
}

// RecordPayment appends a collection event against a challan. The balance is
// re-derived from the authoritative payment set inside the per-challan
// critical section, so two racing attempts can never jointly exceed the
// total: the sum of amount_paid stays within total_amount after every
// successful call.
func (s *CollectionService) RecordPayment(ctx context.Context, challanID string, in PaymentInput, actor int64) (*domain.Payment, error) {
	if in.Amount <= 0 {
		return nil, &domain.InvalidChallanError{Reason: "payment amount must be positive"}
	}
	if !in.Method.Valid() {
		return nil, &domain.InvalidChallanError{Reason: "unknown payment method " + string(in.Method)}
	}

	unlock := s.locks.lock(challanID)
	defer unlock()

	d, err := s.challans.GetDetails(ctx, challanID)
	if err != nil {
		return nil, err
	}

	if d.Status == domain.StatusCancelled {
		return nil, &domain.CancelledChallanError{ChallanID: d.ID}
	}

	balance := d.BalanceDue()
	if in.Amount > balance {
		return nil, &domain.OverpaymentError{RemainingBalance: balance}
	}

	paymentDate := in.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.now()
	}

	p := domain.Payment{
		ID:             uuid.NewString(),
		ChallanID:      d.ID,
		StudentID:      d.StudentID,
		AmountPaid:     in.Amount,
		Method:         in.Method,
		ChequeNumber:   in.ChequeNumber,
		BankName:       in.BankName,
		TransactionID:  in.TransactionID,
		ReceiptNumber:  newReceiptNumber(paymentDate),
		PaymentDate:    paymentDate,
		RecordedBy:     actor,
		RecordedByName: s.cashierName(ctx, actor),
	}

	// an overdue challan accepts payments exactly as a pending one would
	newStatus := Reconcile(d.TotalAmount, d.PaidAmount()+in.Amount, d.DueDate, s.now(), d.Status)

	if err := s.payments.Append(ctx, p, d.Version, newStatus); err != nil {
		return nil, err
	}

	if s.audit != nil {
		payload := map[string]any{
			"receipt_number": p.ReceiptNumber,
			"amount_paid":    p.AmountPaid,
			"method":         p.Method,
			"balance_due":    balance - in.Amount,
		}
		if p.RecordedByName != nil {
			payload["recorded_by"] = *p.RecordedByName
		}
		if err := s.audit.Append(ctx, domain.AuditEntry{
			ChallanID: d.ID,
			UserID:    actor,
			Event:     domain.AuditPaymentRecorded,
			Payload:   auditPayload(payload),
		}); err != nil {
			log.Printf("[AUDIT] append payment_recorded for challan %s: %v", d.ID, err)
		}
	}

	if s.ws != nil {
		_ = s.ws.NotifyPaymentRecorded(ctx, actor, d.ID, p.ReceiptNumber, balance-in.Amount, string(newStatus))
	}

	return &p, nil
}

// cashierName resolves the acting user for display on the receipt. A lookup
// failure never blocks the collection; the receipt falls back to the bare id.
func (s *CollectionService) cashierName(ctx context.Context, actor int64) *string {
	if s.users == nil {
		return nil
	}
	u, err := s.users.FindUserByID(ctx, actor)
	if err != nil {
		log.Printf("[AUDIT] resolve user %d: %v", actor, err)
		return nil
	}
	name := u.FullName()
	return &name
}

// Receipt numbers follow the challan number shape: RCP-YYYYMMDD-XXXXXXXX.
func newReceiptNumber(paymentDate time.Time) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "RCP-" + paymentDate.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
	}
	return "RCP-" + paymentDate.Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(buf))
}
