package domain

import (
	"errors"
	"fmt"
)

var (
	ErrChallanNotFound = errors.New("challan not found")
	ErrStudentNotFound = errors.New("student not found")

	// ErrConflict means two writers raced on the same challan. The whole
	// RecordPayment call re-reads current balance, so retrying it is safe.
	ErrConflict = errors.New("concurrent modification of challan")
)

// InvalidChallanError reports malformed input at challan build time. It is
// never retried; the caller corrects the request.
type InvalidChallanError struct {
	Reason string
}

func (e *InvalidChallanError) Error() string {
	return "invalid challan: " + e.Reason
}

// OverpaymentError carries the exact remaining balance so the collection UI
// can re-prompt with the correct amount instead of forcing a blind retry.
type OverpaymentError struct {
	RemainingBalance int64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment exceeds balance due (remaining %d)", e.RemainingBalance)
}

// CancelledChallanError is returned when a payment is attempted against a
// cancelled challan.
type CancelledChallanError struct {
	ChallanID string
}

func (e *CancelledChallanError) Error() string {
	return "challan " + e.ChallanID + " is cancelled and accepts no payments"
}

// StorageError wraps a failure of the ledger store itself. Unlike the
// validation errors above it is infrastructure-level; callers apply their own
// retry policy.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
