package domain

import "time"

const (
	AuditChallanIssued    = "challan_issued"
	AuditPaymentRecorded  = "payment_recorded"
	AuditChallanCancelled = "challan_cancelled"
)

type AuditEntry struct {
	ID        int64
	ChallanID string
	UserID    int64

	Event   string
	Comment string

	Payload []byte

	CreatedAt *time.Time

	ChallanNumber *string
	StudentName   *string
	UserName      *string
}
