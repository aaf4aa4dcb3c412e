package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ross11547/Automatizacion/internal/handler"
	"github.com/Ross11547/Automatizacion/internal/service"
)

type fakeDashboard struct {
	from, to int
}

func (f *fakeDashboard) Summary(context.Context) (*service.Summary, error) {
	return &service.Summary{Teachers: 2, Students: 5, Faculties: 1}, nil
}

func (f *fakeDashboard) StudentGrowth(_ context.Context, from, to int) ([]service.GrowthPoint, error) {
	f.from, f.to = from, to
	return []service.GrowthPoint{{Year: "2024", Students: 3}}, nil
}

func TestDashboardHandler_Summary(t *testing.T) {
	h := handler.NewDashboardHandler(&fakeDashboard{}, quietLogger())

	rr := httptest.NewRecorder()
	h.HandleSummary(rr, httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeBody(t, rr)["data"].(map[string]any)
	assert.Equal(t, float64(2), data["docentes"])
	assert.Equal(t, float64(5), data["alumnos"])
	assert.Equal(t, float64(0), data["directores"])
}

func TestDashboardHandler_StudentGrowth(t *testing.T) {
	d := &fakeDashboard{}
	h := handler.NewDashboardHandler(d, quietLogger())

	rr := httptest.NewRecorder()
	h.HandleStudentGrowth(rr, httptest.NewRequest(http.MethodGet, "/dashboard/student-growth?from=2021&to=2024", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2021, d.from)
	assert.Equal(t, 2024, d.to)
	points := decodeBody(t, rr)["data"].([]any)
	require.Len(t, points, 1)
	assert.Equal(t, "2024", points[0].(map[string]any)["name"])

	rr = httptest.NewRecorder()
	h.HandleStudentGrowth(rr, httptest.NewRequest(http.MethodGet, "/dashboard/student-growth", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, d.from)
	assert.Zero(t, d.to)

	for _, q := range []string{"from=abc", "to=-3"} {
		rr = httptest.NewRecorder()
		h.HandleStudentGrowth(rr, httptest.NewRequest(http.MethodGet, "/dashboard/student-growth?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}
