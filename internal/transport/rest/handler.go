package rest

import (
	"context"
	"net/http"
	"time"

	"challan-ledger/internal/domain"
	"challan-ledger/internal/repository"
	"challan-ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ChallanBuilder interface {
	BuildChallan(ctx context.Context, in service.BuildChallanInput, actor int64) (*domain.ChallanDetails, error)
	Get(ctx context.Context, id string) (*domain.ChallanDetails, error)
	Cancel(ctx context.Context, challanID string, actor int64, reason string) error
	AuditTrail(ctx context.Context, challanID string) ([]domain.AuditEntry, error)
}

type PaymentRecorder interface {
	RecordPayment(ctx context.Context, challanID string, in service.PaymentInput, actor int64) (*domain.Payment, error)
}

type ReportProvider interface {
	Outstanding(ctx context.Context, f repository.ChallansFilter) (*service.OutstandingReport, error)
	ClassBreakdown(ctx context.Context, f repository.ChallansFilter) ([]repository.ClassRollup, error)
}

type ChallanExporter interface {
	StartChallansExport(ctx context.Context, selected []string, filter repository.ChallansFilter, userID int64) (string, error)
}

type PaymentExporter interface {
	StartPaymentsExport(ctx context.Context, selected []string, filter repository.PaymentsFilter, userID int64) (string, error)
}

type ExportListService interface {
	GetExports(ctx context.Context, userID int64) ([]interface{}, error)
	GetExport(ctx context.Context, exportID string, userID int64) (interface{}, error)
}

type Handler struct {
	challans      ChallanBuilder
	collections   PaymentRecorder
	reports       ReportProvider
	challanExport ChallanExporter
	paymentExport PaymentExporter
	exportList    ExportListService
}

func NewHandler(
	challans ChallanBuilder,
	collections PaymentRecorder,
	reports ReportProvider,
	challanExport ChallanExporter,
	paymentExport PaymentExporter,
	exportList ExportListService,
) *Handler {
	return &Handler{
		challans:      challans,
		collections:   collections,
		reports:       reports,
		challanExport: challanExport,
		paymentExport: paymentExport,
		exportList:    exportList,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/challans", func(r chi.Router) {
		r.Post("/", h.createChallan)
		r.Get("/{challan_id}", h.getChallan)
		r.Get("/{challan_id}/audit", h.challanAudit)
		r.Post("/{challan_id}/payments", h.recordPayment)
		r.Post("/{challan_id}/cancel", h.cancelChallan)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/outstanding", h.outstandingReport)
		r.Get("/classes", h.classReport)
	})

	r.Route("/export", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
		r.Post("/challans", h.exportChallans)
		r.Post("/payments", h.exportPayments)
	})

	return r
}
