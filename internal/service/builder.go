package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"challan-ledger/internal/domain"
	"challan-ledger/internal/repository"

	"github.com/google/uuid"
)

type ChallanStore interface {
	CreateWithItems(ctx context.Context, ch *domain.Challan, items []domain.LineItem) error
	GetDetails(ctx context.Context, id string) (*domain.ChallanDetails, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status domain.ChallanStatus) error
}

type StudentStore interface {
	FindByID(ctx context.Context, id string) (*domain.Student, error)
}

type AuditStore interface {
	Append(ctx context.Context, e domain.AuditEntry) error
	List(ctx context.Context, f repository.AuditFilter) ([]domain.AuditEntry, error)
}

type LineItemInput struct {
	FeeType string
	Amount  int64
}

type BuildChallanInput struct {
	StudentID string
	Items     []LineItemInput
	Discount  int64
	IssueDate time.Time
	DueDate   time.Time
}

type ChallanService struct {
	challans   ChallanStore
	students   StudentStore
	audit      AuditStore
	reconciler *ReconcileService
	now        func() time.Time
}

func NewChallanService(challans ChallanStore, students StudentStore, audit AuditStore, reconciler *ReconcileService) *ChallanService {
	return &ChallanService{
		challans:   challans,
		students:   students,
		audit:      audit,
		reconciler: reconciler,
		now:        time.Now,
	}
}

// BuildChallan validates the billing input, fixes the total, and persists the
// challan together with its line items as one atomic unit. The status is
// always pending at creation; overdue is derived lazily afterwards.
func (s *ChallanService) BuildChallan(ctx context.Context, in BuildChallanInput, actor int64) (*domain.ChallanDetails, error) {
	if len(in.Items) == 0 {
		return nil, &domain.InvalidChallanError{Reason: "line items must not be empty"}
	}

	var gross int64
	for _, item := range in.Items {
		if strings.TrimSpace(item.FeeType) == "" {
			return nil, &domain.InvalidChallanError{Reason: "line item fee type must not be empty"}
		}
		if item.Amount < 0 {
			return nil, &domain.InvalidChallanError{Reason: fmt.Sprintf("line item %q has negative amount", item.FeeType)}
		}
		gross += item.Amount
	}

	if in.Discount < 0 {
		return nil, &domain.InvalidChallanError{Reason: "discount must not be negative"}
	}
	if in.Discount > gross {
		return nil, &domain.InvalidChallanError{Reason: "discount exceeds sum of line items"}
	}
	if in.DueDate.IsZero() {
		return nil, &domain.InvalidChallanError{Reason: "due date is required"}
	}

	student, err := s.students.FindByID(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}

	issueDate := in.IssueDate
	if issueDate.IsZero() {
		issueDate = s.now()
	}

	ch := domain.Challan{
		ID:          uuid.NewString(),
		Number:      newChallanNumber(issueDate),
		StudentID:   student.ID,
		ClassName:   student.ClassName,
		Section:     student.Section,
		IssueDate:   issueDate,
		DueDate:     in.DueDate,
		GrossAmount: gross,
		Discount:    in.Discount,
		TotalAmount: gross - in.Discount,
		Status:      domain.StatusPending,
		IssuedBy:    actor,
	}

	items := make([]domain.LineItem, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, domain.LineItem{
			ID:        uuid.NewString(),
			ChallanID: ch.ID,
			FeeType:   item.FeeType,
			Amount:    item.Amount,
		})
	}

	if err := s.challans.CreateWithItems(ctx, &ch, items); err != nil {
		return nil, err
	}

	s.logAudit(ctx, domain.AuditEntry{
		ChallanID: ch.ID,
		UserID:    actor,
		Event:     domain.AuditChallanIssued,
		Payload: auditPayload(map[string]any{
			"number":       ch.Number,
			"student":      student.FullName(),
			"total_amount": ch.TotalAmount,
			"items":        len(items),
		}),
	})

	return &domain.ChallanDetails{Challan: ch, Items: items}, nil
}

// Get loads a challan with its ledger and re-derives the status on read, so
// listings see overdue without waiting for the sweep.
func (s *ChallanService) Get(ctx context.Context, id string) (*domain.ChallanDetails, error) {
	d, err := s.challans.GetDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.reconciler != nil {
		if _, err := s.reconciler.Apply(ctx, d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Cancel is the explicit administrative transition. Once cancelled a challan
// accepts no further payments; recorded payments are kept untouched as the
// audit trail. Cancelling an already cancelled challan is a no-op.
func (s *ChallanService) Cancel(ctx context.Context, challanID string, actor int64, reason string) error {
	d, err := s.challans.GetDetails(ctx, challanID)
	if err != nil {
		return err
	}
	if d.Status == domain.StatusCancelled {
		return nil
	}

	if err := s.challans.UpdateStatus(ctx, d.ID, d.Version, domain.StatusCancelled); err != nil {
		return err
	}

	s.logAudit(ctx, domain.AuditEntry{
		ChallanID: d.ID,
		UserID:    actor,
		Event:     domain.AuditChallanCancelled,
		Comment:   reason,
		Payload:   auditPayload(map[string]any{"number": d.Number, "paid_amount": d.PaidAmount()}),
	})
	return nil
}

// AuditTrail lists every ledger event recorded against a challan, newest
// first, with the display names joined in.
func (s *ChallanService) AuditTrail(ctx context.Context, challanID string) ([]domain.AuditEntry, error) {
	if _, err := s.challans.GetDetails(ctx, challanID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.List(ctx, repository.AuditFilter{ChallanID: &challanID})
}

func (s *ChallanService) logAudit(ctx context.Context, e domain.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, e); err != nil {
		log.Printf("[AUDIT] append %s for challan %s: %v", e.Event, e.ChallanID, err)
	}
}

func auditPayload(m map[string]any) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

// Challan numbers are per-institution unique: date component plus a random
// suffix, e.g. CHN-20260830-4F2A1C.
func newChallanNumber(issueDate time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// fall back to uuid entropy
		return "CHN-" + issueDate.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:6])
	}
	return "CHN-" + issueDate.Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(buf))
}
