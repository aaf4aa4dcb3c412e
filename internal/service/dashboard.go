package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// GrowthStartYear is the first year of the student growth series when the
// caller gives none.
const GrowthStartYear = 2020

// maxGrowthYears bounds the student growth series.
const maxGrowthYears = 100

type Summary struct {
	Teachers  int `json:"docentes"`
	Students  int `json:"alumnos"`
	Faculties int `json:"facultades"`
	Directors int `json:"directores"`
}

// GrowthPoint is the number of students created in one year.
type GrowthPoint struct {
	Year     string `json:"name"`
	Students int    `json:"estudiantes"`
}

// DashboardService computes the admin dashboard figures. A role that does
// not exist counts as zero users.
type DashboardService struct {
	users     repository.UserRepository
	roles     *RoleResolver
	faculties repository.FacultyRepository
	now       func() time.Time
}

func NewDashboardService(users repository.UserRepository, roles *RoleResolver, faculties repository.FacultyRepository) *DashboardService {
	return &DashboardService{users: users, roles: roles, faculties: faculties, now: time.Now}
}

func (s *DashboardService) Summary(ctx context.Context) (*Summary, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/dashboard: counting users: %w", err)
	}
	faculties, err := s.faculties.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/dashboard: listing faculties: %w", err)
	}

	out := &Summary{Faculties: len(faculties)}
	for _, c := range []struct {
		role string
		dst  *int
	}{
		{model.RoleTeacher, &out.Teachers},
		{model.RoleStudent, &out.Students},
		{model.RoleDirector, &out.Directors},
	} {
		id, ok, err := s.roleID(ctx, c.role)
		if err != nil {
			return nil, err
		}
		if ok {
			*c.dst = counts[id]
		}
	}
	return out, nil
}

// StudentGrowth counts students by creation year for every year in
// [from, to]. Zero from defaults to GrowthStartYear and zero to
// defaults to the current year.
func (s *DashboardService) StudentGrowth(ctx context.Context, from, to int) ([]GrowthPoint, error) {
	if from == 0 {
		from = GrowthStartYear
	}
	if to == 0 {
		to = s.now().Year()
	}
	if to < from {
		return nil, apperror.ValidationFailed("to", "to must not be before from")
	}
	if to-from >= maxGrowthYears {
		return nil, apperror.ValidationFailed("from", "the range must span fewer than "+strconv.Itoa(maxGrowthYears)+" years")
	}

	byYear := map[int]int{}
	id, ok, err := s.roleID(ctx, model.RoleStudent)
	if err != nil {
		return nil, err
	}
	if ok {
		since := time.Date(from, time.January, 1, 0, 0, 0, 0, time.UTC)
		times, err := s.users.CreatedSince(ctx, id, since)
		if err != nil {
			return nil, fmt.Errorf("service/dashboard: listing student creation times: %w", err)
		}
		for _, t := range times {
			byYear[t.UTC().Year()]++
		}
	}

	out := make([]GrowthPoint, 0, to-from+1)
	for y := from; y <= to; y++ {
		out = append(out, GrowthPoint{Year: strconv.Itoa(y), Students: byYear[y]})
	}
	return out, nil
}

func (s *DashboardService) roleID(ctx context.Context, name string) (string, bool, error) {
	id, err := s.roles.ID(ctx, name)
	if errors.Is(err, apperror.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("service/dashboard: resolving role %s: %w", name, err)
	}
	return id, true, nil
}
