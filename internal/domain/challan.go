package domain

import "time"

type ChallanStatus string

const (
	StatusPending   ChallanStatus = "pending"
	StatusPaid      ChallanStatus = "paid"
	StatusOverdue   ChallanStatus = "overdue"
	StatusCancelled ChallanStatus = "cancelled"
)

func (s ChallanStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Amounts across the ledger are int64 minor units (paise).
type Challan struct {
	ID     string
	Number string

	StudentID string
	ClassName string
	Section   *string

	IssueDate time.Time
	DueDate   time.Time

	GrossAmount int64
	Discount    int64
	TotalAmount int64

	Status  ChallanStatus
	Version int64

	IssuedBy int64

	CreatedAt *time.Time
	UpdatedAt *time.Time
}

type LineItem struct {
	ID        string
	ChallanID string
	FeeType   string
	Amount    int64
}

// ChallanDetails is a challan loaded together with its line items and the
// authoritative set of payments recorded against it.
type ChallanDetails struct {
	Challan
	Items    []LineItem
	Payments []Payment
}

func (c *ChallanDetails) PaidAmount() int64 {
	var sum int64
	for _, p := range c.Payments {
		sum += p.AmountPaid
	}
	return sum
}

func (c *ChallanDetails) BalanceDue() int64 {
	due := c.TotalAmount - c.PaidAmount()
	if due < 0 {
		return 0
	}
	return due
}

// ChallanSummary is the listing/export projection: a challan with its paid
// amount already rolled up by the store.
type ChallanSummary struct {
	Challan
	StudentName string
	PaidAmount  int64
}

func (c *ChallanSummary) BalanceDue() int64 {
	due := c.TotalAmount - c.PaidAmount
	if due < 0 {
		return 0
	}
	return due
}
