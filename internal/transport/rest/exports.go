package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"challan-ledger/internal/domain"
	"challan-ledger/internal/repository"
	"challan-ledger/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exports, err := h.exportList.GetExports(r.Context(), userID)
	if err != nil {
		writeChallanError(w, err)
		return
	}

	Success(w, "", map[string]interface{}{"exports": exports})
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportID := chi.URLParam(r, "export_id")
	if exportID == "" {
		ErrorBadRequest(w, "export_id is required")
		return
	}

	export, err := h.exportList.GetExport(r.Context(), exportID, userID)
	if err != nil {
		ErrorNotFound(w, "export not found")
		return
	}

	Success(w, "", export)
}

type exportChallansRequest struct {
	Selected []string `json:"selected"`
	Filter   struct {
		StudentID  *string `json:"student_id"`
		ClassName  *string `json:"class_name"`
		Status     *string `json:"status"`
		IssuedFrom *string `json:"issued_from"`
		IssuedTo   *string `json:"issued_to"`
	} `json:"filter"`
}

func (h *Handler) exportChallans(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var req exportChallansRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	var f repository.ChallansFilter
	f.StudentID = req.Filter.StudentID
	f.ClassName = req.Filter.ClassName
	if req.Filter.Status != nil {
		status := domain.ChallanStatus(*req.Filter.Status)
		if !status.Valid() {
			ErrorBadRequest(w, "unknown status: "+*req.Filter.Status)
			return
		}
		f.Status = &status
	}
	if f.IssuedFrom, err = parseDateParam(req.Filter.IssuedFrom, "issued_from"); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	if f.IssuedTo, err = parseDateParam(req.Filter.IssuedTo, "issued_to"); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	exportID, err := h.challanExport.StartChallansExport(r.Context(), req.Selected, f, userID)
	if err != nil {
		writeChallanError(w, err)
		return
	}

	SuccessAccepted(w, "Export started", map[string]interface{}{"export_id": exportID})
}

type exportPaymentsRequest struct {
	Selected []string `json:"selected"`
	Filter   struct {
		ChallanID *string `json:"challan_id"`
		StudentID *string `json:"student_id"`
		Method    *string `json:"method"`
		PaidFrom  *string `json:"paid_from"`
		PaidTo    *string `json:"paid_to"`
	} `json:"filter"`
}

func (h *Handler) exportPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var req exportPaymentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	var f repository.PaymentsFilter
	f.ChallanID = req.Filter.ChallanID
	f.StudentID = req.Filter.StudentID
	if req.Filter.Method != nil {
		method := domain.PaymentMethod(*req.Filter.Method)
		if !method.Valid() {
			ErrorBadRequest(w, "unknown method: "+*req.Filter.Method)
			return
		}
		f.Method = &method
	}
	if f.PaidFrom, err = parseDateParam(req.Filter.PaidFrom, "paid_from"); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}
	if f.PaidTo, err = parseDateParam(req.Filter.PaidTo, "paid_to"); err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	exportID, err := h.paymentExport.StartPaymentsExport(r.Context(), req.Selected, f, userID)
	if err != nil {
		writeChallanError(w, err)
		return
	}

	SuccessAccepted(w, "Export started", map[string]interface{}{"export_id": exportID})
}

func parseDateParam(v *string, field string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *v)
	if err != nil {
		return nil, &ValidationError{Field: field, Message: field + " must be YYYY-MM-DD"}
	}
	return &t, nil
}
