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

type ChallanListStore interface {
	List(ctx context.Context, f repository.ChallansFilter) ([]domain.ChallanSummary, error)
	HasMoreThan(ctx context.Context, limit int64, f repository.ChallansFilter) (bool, error)
}

type ChallanColumn struct {
	Header string
	Value  func(c domain.ChallanSummary) any
}

var challanColumns = map[string]ChallanColumn{
	"number":       {Header: "Challan No", Value: func(c domain.ChallanSummary) any { return c.Number }},
	"student_name": {Header: "Student", Value: func(c domain.ChallanSummary) any { return c.StudentName }},
	"class_name":   {Header: "Class", Value: func(c domain.ChallanSummary) any { return c.ClassName }},
	"section":      {Header: "Section", Value: func(c domain.ChallanSummary) any { return strPtr(c.Section) }},
	"issue_date":   {Header: "Issued", Value: func(c domain.ChallanSummary) any { return c.IssueDate.Format("2006-01-02") }},
	"due_date":     {Header: "Due", Value: func(c domain.ChallanSummary) any { return c.DueDate.Format("2006-01-02") }},
	"gross_amount": {Header: "Gross", Value: func(c domain.ChallanSummary) any { return rupees(c.GrossAmount) }},
	"discount":     {Header: "Discount", Value: func(c domain.ChallanSummary) any { return rupees(c.Discount) }},
	"total_amount": {Header: "Total", Value: func(c domain.ChallanSummary) any { return rupees(c.TotalAmount) }},
	"paid_amount":  {Header: "Paid", Value: func(c domain.ChallanSummary) any { return rupees(c.PaidAmount) }},
	"balance_due":  {Header: "Balance Due", Value: func(c domain.ChallanSummary) any { return rupees(c.BalanceDue()) }},
	"status":       {Header: "Status", Value: func(c domain.ChallanSummary) any { return string(c.Status) }},
	"created_at":   {Header: "Created", Value: func(c domain.ChallanSummary) any { return timePtr(c.CreatedAt) }},
}

const maxChallansForExport = 200_000

type ChallanExportService struct {
	store   ChallanListStore
	redis   *clients.RedisClient
	storage clients.ExportStorage
	ws      *clients.WebSocketClient
}

func NewChallanExportService(store ChallanListStore, redis *clients.RedisClient, storage clients.ExportStorage, ws *clients.WebSocketClient) *ChallanExportService {
	return &ChallanExportService{store: store, redis: redis, storage: storage, ws: ws}
}

func (s *ChallanExportService) StartChallansExport(ctx context.Context, selected []string, filter repository.ChallansFilter, userID int64) (string, error) {
	if len(selected) == 0 {
		selected = []string{"number", "student_name", "class_name", "section", "issue_date", "due_date", "gross_amount", "discount", "total_amount", "paid_amount", "balance_due", "status"}
	}

	tooMany, err := s.store.HasMoreThan(ctx, maxChallansForExport, filter)
	if err != nil {
		return "", err
	}
	if tooMany {
		return "", fmt.Errorf("too many challans to export (over %d rows)", maxChallansForExport)
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:      exportID,
		Type:     "challans",
		UserID:   userID,
		Filters:  buildChallansFiltersMap(filter, selected),
		Progress: 0,
		Created:  now,
	}
	_ = saveExportStatus(ctx, s.redis, status)

	go s.runChallansExport(context.Background(), exportID, selected, filter, userID, now)

	return exportID, nil
}

func (s *ChallanExportService) runChallansExport(ctx context.Context, exportID string, selected []string, filter repository.ChallansFilter, userID int64, createdAt time.Time) {
	status := &ExportStatus{
		Key:     exportID,
		Type:    "challans",
		UserID:  userID,
		Filters: buildChallansFiltersMap(filter, selected),
		Created: createdAt,
	}

	challans, err := s.store.List(ctx, filter)
	if err != nil {
		s.fail(ctx, status, userID, exportID, fmt.Sprintf("list challans failed: %v", err))
		return
	}

	var cols []ChallanColumn
	for _, key := range selected {
		col, ok := challanColumns[key]
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
	sheet := "Challans"
	f.SetSheetName(f.GetSheetName(0), sheet)

	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", userID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(challans)
	rowIdx := 2
	chunkSize := 500
	for i, c := range challans {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(c))
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

	fileName := fmt.Sprintf("challans_%s.xlsx", time.Now().Format("20060102_150405"))

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

func (s *ChallanExportService) fail(ctx context.Context, status *ExportStatus, userID int64, exportID, errStr string) {
	log.Printf("export %s: %s", exportID, errStr)
	status.Error = &errStr
	status.Progress = 100
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
	}
}

func buildChallansFiltersMap(f repository.ChallansFilter, fields []string) map[string]interface{} {
	m := map[string]interface{}{}
	if f.StudentID != nil {
		m["student_id"] = *f.StudentID
	} else {
		m["student_id"] = nil
	}
	if f.ClassName != nil {
		m["class_name"] = *f.ClassName
	} else {
		m["class_name"] = nil
	}
	if f.Status != nil {
		m["status"] = string(*f.Status)
	} else {
		m["status"] = nil
	}
	if f.IssuedFrom != nil {
		m["issued_from"] = f.IssuedFrom.Format("2006-01-02")
	} else {
		m["issued_from"] = nil
	}
	if f.IssuedTo != nil {
		m["issued_to"] = f.IssuedTo.Format("2006-01-02")
	} else {
		m["issued_to"] = nil
	}
	m["fields"] = fields
	return m
}
