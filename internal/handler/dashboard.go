package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/service"
)

type Dashboard interface {
	Summary(ctx context.Context) (*service.Summary, error)
	StudentGrowth(ctx context.Context, from, to int) ([]service.GrowthPoint, error)
}

// DashboardHandler serves /dashboard.
type DashboardHandler struct {
	dashboard Dashboard
	logger    *slog.Logger
}

func NewDashboardHandler(d Dashboard, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: d, logger: logger}
}

// HandleSummary: GET /dashboard/summary
func (h *DashboardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.dashboard.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s, "dashboard summary retrieved")
}

// HandleStudentGrowth: GET /dashboard/student-growth?from=2020&to=2025
//
// Both years are optional.
func (h *DashboardHandler) HandleStudentGrowth(w http.ResponseWriter, r *http.Request) {
	from, err := yearParam(r, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := yearParam(r, "to")
	if err != nil {
		writeError(w, err)
		return
	}
	points, err := h.dashboard.StudentGrowth(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, points, "student growth retrieved")
}

func yearParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y < 1 {
		return 0, apperror.ValidationFailed(name, name+" must be a year")
	}
	return y, nil
}
