package domain

import "time"

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCheque       PaymentMethod = "cheque"
	MethodOnline       PaymentMethod = "online"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCheque, MethodOnline, MethodCard, MethodBankTransfer:
		return true
	}
	return false
}

// Payment rows are append-only; corrections are never made by mutation.
type Payment struct {
	ID        string
	ChallanID string
	StudentID string

	AmountPaid int64
	Method     PaymentMethod

	ChequeNumber  *string
	BankName      *string
	TransactionID *string

	ReceiptNumber string
	PaymentDate   time.Time
	RecordedBy    int64

	CreatedAt *time.Time

	ChallanNumber  *string
	StudentName    *string
	ClassName      *string
	RecordedByName *string
}
