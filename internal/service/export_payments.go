package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"challan-ledger/internal/clients"
	"challan-ledger/internal/domain"
	"challan-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type PaymentListStore interface {
	List(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error)
	HasMoreThan(ctx context.Context, limit int64, f repository.PaymentsFilter) (bool, error)
}

type PaymentColumn struct {
	Header string
	Value  func(p domain.Payment) any
}

var paymentColumns = map[string]PaymentColumn{
	"receipt_number": {Header: "Receipt No", Value: func(p domain.Payment) any { return p.ReceiptNumber }},
	"challan_number": {Header: "Challan No", Value: func(p domain.Payment) any { return strPtr(p.ChallanNumber) }},
	"student_name":   {Header: "Student", Value: func(p domain.Payment) any { return strPtr(p.StudentName) }},
	"class_name":     {Header: "Class", Value: func(p domain.Payment) any { return strPtr(p.ClassName) }},
	"amount_paid":    {Header: "Amount", Value: func(p domain.Payment) any { return rupees(p.AmountPaid) }},
	"method":         {Header: "Method", Value: func(p domain.Payment) any { return string(p.Method) }},
	"cheque_number":  {Header: "Cheque No", Value: func(p domain.Payment) any { return strPtr(p.ChequeNumber) }},
	"bank_name":      {Header: "Bank", Value: func(p domain.Payment) any { return strPtr(p.BankName) }},
	"transaction_id": {Header: "Transaction ID", Value: func(p domain.Payment) any { return strPtr(p.TransactionID) }},
	"payment_date":   {Header: "Paid On", Value: func(p domain.Payment) any { return p.PaymentDate.Format("2006-01-02") }},
	"recorded_by": {Header: "Recorded By", Value: func(p domain.Payment) any {
		if p.RecordedByName != nil {
			return *p.RecordedByName
		}
		return p.RecordedBy
	}},
	"created_at":     {Header: "Created", Value: func(p domain.Payment) any { return timePtr(p.CreatedAt) }},
}

const maxPaymentsForExport = 500_000

type PaymentExportService struct {
	store   PaymentListStore
	redis   *clients.RedisClient
	storage clients.ExportStorage
	ws      *clients.WebSocketClient
}

func NewPaymentExportService(store PaymentListStore, redis *clients.RedisClient, storage clients.ExportStorage, ws *clients.WebSocketClient) *PaymentExportService {
	return &PaymentExportService{store: store, redis: redis, storage: storage, ws: ws}
}

func (s *PaymentExportService) StartPaymentsExport(ctx context.Context, selected []string, filter repository.PaymentsFilter, userID int64) (string, error) {
	if len(selected) == 0 {
		selected = []string{"receipt_number", "challan_number", "student_name", "class_name", "amount_paid", "method", "cheque_number", "bank_name", "transaction_id", "payment_date", "recorded_by"}
	}

	tooMany, err := s.store.HasMoreThan(ctx, maxPaymentsForExport, filter)
	if err != nil {
		return "", err
	}
	if tooMany {
		return "", fmt.Errorf("too many payments to export (over %d rows)", maxPaymentsForExport)
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:      exportID,
		Type:     "payments",
		UserID:   userID,
		Filters:  buildPaymentsFiltersMap(filter, selected),
		Progress: 0,
		Created:  now,
	}
	_ = saveExportStatus(ctx, s.redis, status)

	go s.runPaymentsExport(context.Background(), exportID, selected, filter, userID, now)

	return exportID, nil
}

func (s *PaymentExportService) runPaymentsExport(ctx context.Context, exportID string, selected []string, filter repository.PaymentsFilter, userID int64, createdAt time.Time) {
	status := &ExportStatus{
		Key:     exportID,
		Type:    "payments",
		UserID:  userID,
		Filters: buildPaymentsFiltersMap(filter, selected),
		Created: createdAt,
	}

	payments, err := s.store.List(ctx, filter)
	if err != nil {
		s.fail(ctx, status, userID, exportID, fmt.Sprintf("list payments failed: %v", err))
		return
	}

	var cols []PaymentColumn
	for _, key := range selected {
		col, ok := paymentColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		s.fail(ctx, status, userID, exportID, "no known columns selected")
		return
	}

	f := excelize.NewFile()
	sheet := "Payments"
	f.SetSheetName(f.GetSheetName(0), sheet)

	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", userID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(payments)
	rowIdx := 2
	chunkSize := 1000
	for i, p := range payments {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(p))
		}
		rowIdx++

		if (i+1)%chunkSize == 0 || i == total-1 {
			raw := float64(i+1) / float64(total) * 100.0
			progress := math.Round(raw)
			if progress >= 100 {
				progress = 95
			}
			status.Progress = progress
			_ = saveExportStatus(ctx, s.redis, status)
			if s.ws != nil {
				_ = s.ws.NotifyExportProgress(ctx, userID, exportID, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.fail(ctx, status, userID, exportID, fmt.Sprintf("write workbook failed: %v", err))
		return
	}

	fileName := fmt.Sprintf("payments_%s.xlsx", time.Now().Format("20060102_150405"))

	status.Progress = 95
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 95, "uploading")
	}

	savedName, err := s.storage.Save(ctx, fileName, buf.Bytes())
	if err != nil {
		s.fail(ctx, status, userID, exportID, fmt.Sprintf("save export failed: %v", err))
		return
	}

	url := s.storage.GetURL(savedName)
	status.FileURL = &url
	status.Progress = 100
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, userID, exportID, url, fileName)
	}
}

func (s *PaymentExportService) fail(ctx context.Context, status *ExportStatus, userID int64, exportID, errStr string) {
	log.Printf("export %s: %s", exportID, errStr)
	status.Error = &errStr
	status.Progress = 100
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
	}
}

func buildPaymentsFiltersMap(f repository.PaymentsFilter, fields []string) map[string]interface{} {
	m := map[string]interface{}{}
	if f.ChallanID != nil {
		m["challan_id"] = *f.ChallanID
	} else {
		m["challan_id"] = nil
	}
	if f.StudentID != nil {
		m["student_id"] = *f.StudentID
	} else {
		m["student_id"] = nil
	}
	if f.Method != nil {
		m["method"] = string(*f.Method)
	} else {
		m["method"] = nil
	}
	if f.PaidFrom != nil {
		m["paid_from"] = f.PaidFrom.Format("2006-01-02")
	} else {
		m["paid_from"] = nil
	}
	if f.PaidTo != nil {
		m["paid_to"] = f.PaidTo.Format("2006-01-02")
	} else {
		m["paid_to"] = nil
	}
	m["fields"] = fields
	return m
}
