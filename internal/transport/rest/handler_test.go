package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"challan-ledger/internal/domain"
	"challan-ledger/internal/service"
	"challan-ledger/internal/transport/auth"
)

type fakeChallanBuilder struct {
	details map[string]*domain.ChallanDetails
	audit   map[string][]domain.AuditEntry
}

func (f *fakeChallanBuilder) BuildChallan(_ context.Context, in service.BuildChallanInput, _ int64) (*domain.ChallanDetails, error) {
	if len(in.Items) == 0 {
		return nil, &domain.InvalidChallanError{Reason: "line items must not be empty"}
	}
	d := &domain.ChallanDetails{Challan: domain.Challan{
		ID:        "ch-new",
		Number:    "CHN-20260305-AB12CD",
		StudentID: in.StudentID,
		DueDate:   in.DueDate,
		Status:    domain.StatusPending,
	}}
	return d, nil
}

func (f *fakeChallanBuilder) Get(_ context.Context, id string) (*domain.ChallanDetails, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, domain.ErrChallanNotFound
	}
	return d, nil
}

func (f *fakeChallanBuilder) Cancel(_ context.Context, challanID string, _ int64, _ string) error {
	if _, ok := f.details[challanID]; !ok {
		return domain.ErrChallanNotFound
	}
	return nil
}

func (f *fakeChallanBuilder) AuditTrail(_ context.Context, challanID string) ([]domain.AuditEntry, error) {
	if _, ok := f.details[challanID]; !ok {
		return nil, domain.ErrChallanNotFound
	}
	return f.audit[challanID], nil
}

type fakePaymentRecorder struct {
	balance int64
}

func (f *fakePaymentRecorder) RecordPayment(_ context.Context, challanID string, in service.PaymentInput, actor int64) (*domain.Payment, error) {
	if in.Amount > f.balance {
		return nil, &domain.OverpaymentError{RemainingBalance: f.balance}
	}
	return &domain.Payment{
		ID:            "pay-1",
		ChallanID:     challanID,
		AmountPaid:    in.Amount,
		Method:        in.Method,
		ReceiptNumber: "RCP-20260305-DEADBEEF",
		PaymentDate:   time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
		RecordedBy:    actor,
	}, nil
}

func newHandlerFixture() (*Handler, *fakeChallanBuilder) {
	builder := &fakeChallanBuilder{
		details: map[string]*domain.ChallanDetails{
			"ch-1": {
				Challan: domain.Challan{
					ID:          "ch-1",
					Number:      "CHN-20260301-4F2A1C",
					StudentID:   "st-1",
					IssueDate:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
					DueDate:     time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
					GrossAmount: 600000,
					TotalAmount: 600000,
					Status:      domain.StatusPending,
				},
				Payments: []domain.Payment{{
					ID: "pay-0", ChallanID: "ch-1", AmountPaid: 200000,
					Method: domain.MethodCash, ReceiptNumber: "RCP-20260302-00C0FFEE",
					PaymentDate: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
				}},
			},
		},
		audit: map[string][]domain.AuditEntry{
			"ch-1": {
				{ID: 2, ChallanID: "ch-1", Event: domain.AuditPaymentRecorded},
				{ID: 1, ChallanID: "ch-1", Event: domain.AuditChallanIssued},
			},
		},
	}
	h := NewHandler(builder, &fakePaymentRecorder{balance: 400000}, nil, nil, nil, nil)
	return h, builder
}

// asUser stands in for the token middleware in tests.
func asUser(id int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), auth.UserIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestRouter_GetChallan(t *testing.T) {
	h, _ := newHandlerFixture()
	router := h.InitRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/challans/ch-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Errorf("envelope status = %q, want success", resp.Status)
	}

	data := resp.Data.(map[string]interface{})
	if data["number"] != "CHN-20260301-4F2A1C" {
		t.Errorf("number = %v", data["number"])
	}
	if data["balance_due"] != float64(400000) {
		t.Errorf("balance_due = %v, want 400000", data["balance_due"])
	}
}

func TestRouter_GetChallanNotFound(t *testing.T) {
	h, _ := newHandlerFixture()
	router := h.InitRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/challans/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.ErrorCode != 404 {
		t.Errorf("error_code = %d, want 404", resp.ErrorCode)
	}
}

func TestRouter_ChallanAudit(t *testing.T) {
	h, _ := newHandlerFixture()
	router := h.InitRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/challans/ch-1/audit", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	entries := resp.Data.(map[string]interface{})["entries"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	first := entries[0].(map[string]interface{})
	if first["event"] != domain.AuditPaymentRecorded {
		t.Errorf("first event = %v, want payment_recorded", first["event"])
	}
}

func TestRouter_CreateChallanUnauthenticated(t *testing.T) {
	h, _ := newHandlerFixture()
	router := h.InitRouter()

	body := strings.NewReader(`{"student_id":"st-1","items":[{"fee_type":"tuition","amount":500000}],"due_date":"2026-03-15"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/challans", body))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without an authenticated actor", rec.Code)
	}
}

func TestRouter_RecordPaymentOverpayment(t *testing.T) {
	h, _ := newHandlerFixture()
	router := h.InitRouterWithAuth(asUser(7))

	body := strings.NewReader(`{"amount":500000,"method":"cash"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/challans/ch-1/payments", body))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data := resp.Data.(map[string]interface{})
	if data["remaining_balance"] != float64(400000) {
		t.Errorf("remaining_balance = %v, want 400000", data["remaining_balance"])
	}
}
