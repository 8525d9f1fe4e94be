package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"challan-ledger/internal/domain"
	"challan-ledger/internal/service"
	"challan-ledger/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

type rawRecordPaymentRequest struct {
	Amount        interface{} `json:"amount"`
	Method        string      `json:"method"`
	ChequeNumber  interface{} `json:"cheque_number"`
	BankName      interface{} `json:"bank_name"`
	TransactionID interface{} `json:"transaction_id"`
	PaymentDate   interface{} `json:"payment_date"`
}

func ValidateRecordPaymentRequest(r *http.Request) (*service.PaymentInput, error) {
	var raw rawRecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, err
	}

	amount, err := toAmount(raw.Amount, "amount")
	if err != nil {
		return nil, err
	}

	in := service.PaymentInput{
		Amount: amount,
		Method: domain.PaymentMethod(raw.Method),
	}

	if in.ChequeNumber, err = toStringPtr(raw.ChequeNumber); err != nil {
		return nil, &ValidationError{Field: "cheque_number", Message: "cheque_number must be a string"}
	}
	if in.BankName, err = toStringPtr(raw.BankName); err != nil {
		return nil, &ValidationError{Field: "bank_name", Message: "bank_name must be a string"}
	}
	if in.TransactionID, err = toStringPtr(raw.TransactionID); err != nil {
		return nil, &ValidationError{Field: "transaction_id", Message: "transaction_id must be a string"}
	}

	paymentDate, err := toDatePtr(raw.PaymentDate)
	if err != nil {
		return nil, &ValidationError{Field: "payment_date", Message: "payment_date must be YYYY-MM-DD or empty"}
	}
	if paymentDate != nil {
		in.PaymentDate = *paymentDate
	}

	return &in, nil
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	challanID := chi.URLParam(r, "challan_id")
	if challanID == "" {
		ErrorBadRequest(w, "challan_id is required")
		return
	}

	in, err := ValidateRecordPaymentRequest(r)
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

	p, err := h.collections.RecordPayment(r.Context(), challanID, *in, actor)
	if err != nil {
		writeChallanError(w, err)
		return
	}

	SuccessCreated(w, "Payment recorded", paymentPayload(p))
}
