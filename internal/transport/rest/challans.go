package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"challan-ledger/internal/domain"
	"challan-ledger/internal/service"
	"challan-ledger/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

type rawLineItem struct {
	FeeType string      `json:"fee_type"`
	Amount  interface{} `json:"amount"`
}

type rawCreateChallanRequest struct {
	StudentID string        `json:"student_id"`
	Items     []rawLineItem `json:"items"`
	Discount  interface{}   `json:"discount"`
	IssueDate interface{}   `json:"issue_date"`
	DueDate   interface{}   `json:"due_date"`
}

// ValidateCreateChallanRequest parses the billing input. Amounts arrive in
// minor units; business rules (non-empty items, discount bounds) are the
// builder's job, only shape is checked here.
func ValidateCreateChallanRequest(r *http.Request) (*service.BuildChallanInput, error) {
	var raw rawCreateChallanRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	if raw.StudentID == "" {
		return nil, &ValidationError{Field: "student_id", Message: "student_id is required"}
	}

	in := service.BuildChallanInput{StudentID: raw.StudentID}

	for _, item := range raw.Items {
		amount, err := toAmount(item.Amount, "items.amount")
		if err != nil {
			return nil, err
		}
		in.Items = append(in.Items, service.LineItemInput{FeeType: item.FeeType, Amount: amount})
	}

	discount, err := toAmount(raw.Discount, "discount")
	if err != nil {
		return nil, err
	}
	in.Discount = discount

	issueDate, err := toDatePtr(raw.IssueDate)
	if err != nil {
		return nil, &ValidationError{Field: "issue_date", Message: "issue_date must be YYYY-MM-DD or empty"}
	}
	if issueDate != nil {
		in.IssueDate = *issueDate
	}

	dueDate, err := toDatePtr(raw.DueDate)
	if err != nil {
		return nil, &ValidationError{Field: "due_date", Message: "due_date must be YYYY-MM-DD or empty"}
	}
	if dueDate == nil {
		return nil, &ValidationError{Field: "due_date", Message: "due_date is required"}
	}
	in.DueDate = *dueDate

	return &in, nil
}

func (h *Handler) createChallan(w http.ResponseWriter, r *http.Request) {
	in, err := ValidateCreateChallanRequest(r)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			ErrorBadRequest(w, err.Error())
			return
		}
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	actor, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	d, err := h.challans.BuildChallan(r.Context(), *in, actor)
	if err != nil {
		writeChallanError(w, err)
		return
	}

	SuccessCreated(w, "Challan issued", challanPayload(d))
}

func (h *Handler) getChallan(w http.ResponseWriter, r *http.Request) {
	challanID := chi.URLParam(r, "challan_id")
	if challanID == "" {
		ErrorBadRequest(w, "challan_id is required")
		return
	}

	d, err := h.challans.Get(r.Context(), challanID)
	if err != nil {
		writeChallanError(w, err)
		return
	}

	Success(w, "", challanPayload(d))
}

func (h *Handler) challanAudit(w http.ResponseWriter, r *http.Request) {
	challanID := chi.URLParam(r, "challan_id")
	if challanID == "" {
		ErrorBadRequest(w, "challan_id is required")
		return
	}

	entries, err := h.challans.AuditTrail(r.Context(), challanID)
	if err != nil {
		writeChallanError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryPayload(&e))
	}

	Success(w, "", map[string]interface{}{"entries": out})
}

type cancelChallanRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelChallan(w http.ResponseWriter, r *http.Request) {
	challanID := chi.URLParam(r, "challan_id")
	if challanID == "" {
		ErrorBadRequest(w, "challan_id is required")
		return
	}

	var req cancelChallanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	actor, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.challans.Cancel(r.Context(), challanID, actor, req.Reason); err != nil {
		writeChallanError(w, err)
		return
	}

	Success(w, "Challan cancelled", nil)
}

// writeChallanError maps engine errors onto the response envelope. All of
// these are recoverable at the call boundary; only storage failures are 5xx.
func writeChallanError(w http.ResponseWriter, err error) {
	var (
		invalidErr   *domain.InvalidChallanError
		overpayErr   *domain.OverpaymentError
		cancelledErr *domain.CancelledChallanError
		storageErr   *domain.StorageError
	)

	switch {
	case errors.Is(err, domain.ErrChallanNotFound):
		ErrorNotFound(w, "challan not found")
	case errors.Is(err, domain.ErrStudentNotFound):
		ErrorNotFound(w, "student not found")
	case errors.As(err, &invalidErr):
		ErrorBadRequest(w, invalidErr.Error())
	case errors.As(err, &overpayErr):
		ErrorWithData(w, "payment exceeds balance due",
			map[string]interface{}{"remaining_balance": overpayErr.RemainingBalance},
			422, http.StatusUnprocessableEntity)
	case errors.As(err, &cancelledErr):
		ErrorConflict(w, cancelledErr.Error())
	case errors.Is(err, domain.ErrConflict):
		ErrorConflict(w, "challan was modified concurrently, retry the operation")
	case errors.As(err, &storageErr):
		log.Printf("[HTTP] storage error: %v", err)
		ErrorInternal(w, "ledger store unavailable")
	default:
		log.Printf("[HTTP] unexpected error: %v", err)
		ErrorInternal(w, "internal error")
	}
}

func challanPayload(d *domain.ChallanDetails) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, map[string]interface{}{
			"id":       item.ID,
			"fee_type": item.FeeType,
			"amount":   item.Amount,
		})
	}

	payments := make([]map[string]interface{}, 0, len(d.Payments))
	for _, p := range d.Payments {
		payments = append(payments, paymentPayload(&p))
	}

	return map[string]interface{}{
		"id":           d.ID,
		"number":       d.Number,
		"student_id":   d.StudentID,
		"class_name":   d.ClassName,
		"section":      d.Section,
		"issue_date":   d.IssueDate.Format("2006-01-02"),
		"due_date":     d.DueDate.Format("2006-01-02"),
		"gross_amount": d.GrossAmount,
		"discount":     d.Discount,
		"total_amount": d.TotalAmount,
		"paid_amount":  d.PaidAmount(),
		"balance_due":  d.BalanceDue(),
		"status":       d.Status,
		"items":        items,
		"payments":     payments,
	}
}

func paymentPayload(p *domain.Payment) map[string]interface{} {
	return map[string]interface{}{
		"id":               p.ID,
		"challan_id":       p.ChallanID,
		"student_id":       p.StudentID,
		"amount_paid":      p.AmountPaid,
		"method":           p.Method,
		"cheque_number":    p.ChequeNumber,
		"bank_name":        p.BankName,
		"transaction_id":   p.TransactionID,
		"receipt_number":   p.ReceiptNumber,
		"payment_date":     p.PaymentDate.Format("2006-01-02"),
		"recorded_by":      p.RecordedBy,
		"recorded_by_name": p.RecordedByName,
	}
}

func auditEntryPayload(e *domain.AuditEntry) map[string]interface{} {
	out := map[string]interface{}{
		"id":             e.ID,
		"challan_id":     e.ChallanID,
		"user_id":        e.UserID,
		"event":          e.Event,
		"comment":        e.Comment,
		"payload":        json.RawMessage(e.Payload),
		"challan_number": e.ChallanNumber,
		"student_name":   e.StudentName,
		"user_name":      e.UserName,
	}
	if e.CreatedAt != nil {
		out["created_at"] = e.CreatedAt.Format(time.RFC3339)
	}
	return out
}
