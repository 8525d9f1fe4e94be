package rest

import (
	"net/http"
	"time"

	"challan-ledger/internal/domain"
	"challan-ledger/internal/repository"
)

// parseChallansFilter reads the shared challan filter from query params.
// Unknown statuses are rejected; empty params mean no constraint.
func parseChallansFilter(r *http.Request) (repository.ChallansFilter, error) {
	var f repository.ChallansFilter
	q := r.URL.Query()

	if v := q.Get("student_id"); v != "" {
		f.StudentID = &v
	}
	if v := q.Get("class_name"); v != "" {
		f.ClassName = &v
	}
	if v := q.Get("status"); v != "" {
		status := domain.ChallanStatus(v)
		if !status.Valid() {
			return f, &ValidationError{Field: "status", Message: "unknown status: " + v}
		}
		f.Status = &status
	}
	if v := q.Get("issued_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, &ValidationError{Field: "issued_from", Message: "issued_from must be YYYY-MM-DD"}
		}
		f.IssuedFrom = &t
	}
	if v := q.Get("issued_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, &ValidationError{Field: "issued_to", Message: "issued_to must be YYYY-MM-DD"}
		}
		f.IssuedTo = &t
	}

	return f, nil
}

func (h *Handler) outstandingReport(w http.ResponseWriter, r *http.Request) {
	f, err := parseChallansFilter(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	report, err := h.reports.Outstanding(r.Context(), f)
	if err != nil {
		writeChallanError(w, err)
		return
	}

	Success(w, "", report)
}

func (h *Handler) classReport(w http.ResponseWriter, r *http.Request) {
	f, err := parseChallansFilter(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	rollups, err := h.reports.ClassBreakdown(r.Context(), f)
	if err != nil {
		writeChallanError(w, err)
		return
	}

	Success(w, "", map[string]interface{}{"classes": rollups})
}
