package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// maxCodeAttempts bounds the numeric suffixes tried by uniqueCode.
const maxCodeAttempts = 1000

// CatalogRepos groups the stores a CatalogService reads and writes.
type CatalogRepos struct {
	Faculties   repository.FacultyRepository
	Careers     repository.CareerRepository
	Semesters   repository.SemesterRepository
	Subjects    repository.SubjectRepository
	Schedules   repository.ScheduleRepository
	Assignments repository.AssignmentRepository
}

// CatalogService manages faculties, careers, semesters, subjects and their
// weekly schedules.
type CatalogService struct {
	faculties   repository.FacultyRepository
	careers     repository.CareerRepository
	semesters   repository.SemesterRepository
	subjects    repository.SubjectRepository
	schedules   repository.ScheduleRepository
	assignments repository.AssignmentRepository
	logger      *slog.Logger
}

func NewCatalogService(r CatalogRepos, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		faculties:   r.Faculties,
		careers:     r.Careers,
		semesters:   r.Semesters,
		subjects:    r.Subjects,
		schedules:   r.Schedules,
		assignments: r.Assignments,
		logger:      logger,
	}
}

// ---- faculties ----

func (s *CatalogService) ListFaculties(ctx context.Context) ([]model.Faculty, error) {
	return s.faculties.List(ctx)
}

func (s *CatalogService) GetFaculty(ctx context.Context, id string) (*model.Faculty, error) {
	return s.faculties.GetByID(ctx, id)
}

func (s *CatalogService) CreateFaculty(ctx context.Context, name string, theme json.RawMessage) (*model.Faculty, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("nombre", "faculty name is required")
	}
	if err := validateTheme(theme); err != nil {
		return nil, err
	}
	f := &model.Faculty{Name: name, Theme: theme}
	if err := s.faculties.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("service/catalog: creating faculty: %w", err)
	}
	s.logger.Info("faculty created", slog.String("id", f.ID))
	return f, nil
}

// UpdateFaculty renames a faculty and, when theme is non-nil, replaces its
// theme. A JSON null theme clears it.
func (s *CatalogService) UpdateFaculty(ctx context.Context, id string, name *string, theme json.RawMessage) (*model.Faculty, error) {
	f, err := s.faculties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, apperror.ValidationFailed("nombre", "name must not be empty")
		}
		f.Name = n
	}
	if theme != nil {
		if err := validateTheme(theme); err != nil {
			return nil, err
		}
		f.Theme = theme
	}
	if err := s.faculties.Update(ctx, f); err != nil {
		return nil, err
	}
	return s.faculties.GetByID(ctx, id)
}

func (s *CatalogService) DeleteFaculty(ctx context.Context, id string) error {
	return s.faculties.Delete(ctx, id)
}

func validateTheme(theme json.RawMessage) error {
	if len(theme) == 0 || string(theme) == "null" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(theme, &obj); err != nil {
		return apperror.ValidationFailed("theme", "theme must be a JSON object")
	}
	return nil
}

// ---- careers ----

type CareerInput struct {
	Name         string
	Abbreviation string
	FacultyID    string
}

func (s *CatalogService) ListCareers(ctx context.Context) ([]model.Career, error) {
	return s.careers.List(ctx)
}

func (s *CatalogService) GetCareer(ctx context.Context, id string) (*model.Career, error) {
	return s.careers.GetByID(ctx, id)
}

func (s *CatalogService) CreateCareer(ctx context.Context, in CareerInput) (*model.Career, error) {
	c := &model.Career{
		Name:         strings.TrimSpace(in.Name),
		Abbreviation: strings.ToUpper(strings.TrimSpace(in.Abbreviation)),
		FacultyID:    in.FacultyID,
	}
	if c.Name == "" {
		return nil, apperror.ValidationFailed("nombre", "career name is required")
	}
	if c.FacultyID == "" {
		return nil, apperror.ValidationFailed("idFacultad", "idFacultad is required")
	}
	if err := s.careers.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("career created", slog.String("id", c.ID))
	return s.careers.GetByID(ctx, c.ID)
}

func (s *CatalogService) UpdateCareer(ctx context.Context, id string, in CareerInput) (*model.Career, error) {
	c, err := s.careers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n := strings.TrimSpace(in.Name); n != "" {
		c.Name = n
	}
	if a := strings.TrimSpace(in.Abbreviation); a != "" {
		c.Abbreviation = strings.ToUpper(a)
	}
	if in.FacultyID != "" {
		c.FacultyID = in.FacultyID
	}
	if err := s.careers.Update(ctx, c); err != nil {
		return nil, err
	}
	return s.careers.GetByID(ctx, id)
}

func (s *CatalogService) DeleteCareer(ctx context.Context, id string) error {
	return s.careers.Delete(ctx, id)
}

// ---- subjects ----

// SubjectInput carries the writable subject fields. SemesterID must name a
// semester of the subject's career.
type SubjectInput struct {
	Name       string
	CareerID   string
	SemesterID string
}

func (s *CatalogService) ListSubjects(ctx context.Context, f repository.SubjectFilter) ([]model.Subject, error) {
	return s.subjects.List(ctx, f)
}

func (s *CatalogService) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	return s.subjects.GetByID(ctx, id)
}

// CreateSubject stores a subject under a code derived from its name.
func (s *CatalogService) CreateSubject(ctx context.Context, in SubjectInput) (*model.Subject, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("nombre", "nombre is required")
	}
	if in.CareerID == "" {
		return nil, apperror.ValidationFailed("idCarrera", "a valid idCarrera is required")
	}
	if err := s.requireCareer(ctx, in.CareerID); err != nil {
		return nil, err
	}
	if err := s.requireSemesterOf(ctx, in.SemesterID, in.CareerID); err != nil {
		return nil, err
	}

	code, err := s.uniqueCode(ctx, SubjectCode(name))
	if err != nil {
		return nil, err
	}
	sub := &model.Subject{Name: name, Code: code, CareerID: in.CareerID, SemesterID: in.SemesterID}
	if err := s.subjects.Create(ctx, sub); err != nil {
		return nil, err
	}
	s.logger.Info("subject created", slog.String("id", sub.ID), slog.String("code", code))
	return s.subjects.GetByID(ctx, sub.ID)
}

// UpdateSubject applies the non-empty fields of in. Moving the subject to
// another career without naming a semester clears its semester. A rename whose derived
// code differs from the current one (ignoring its numeric suffix) assigns a
// new unique code; otherwise the code is kept.
func (s *CatalogService) UpdateSubject(ctx context.Context, id string, in SubjectInput) (*model.Subject, error) {
	sub, err := s.subjects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("nombre", "nombre must not be empty")
		}
		if base := SubjectCode(name); base != codeBase(sub.Code) {
			code, err := s.uniqueCode(ctx, base)
			if err != nil {
				return nil, err
			}
			sub.Code = code
		}
		sub.Name = name
	}
	if in.CareerID != "" && in.CareerID != sub.CareerID {
		if err := s.requireCareer(ctx, in.CareerID); err != nil {
			return nil, err
		}
		sub.CareerID = in.CareerID
		// The old semester belongs to the old career.
		sub.SemesterID = ""
	}
	if in.SemesterID != "" {
		if err := s.requireSemesterOf(ctx, in.SemesterID, sub.CareerID); err != nil {
			return nil, err
		}
		sub.SemesterID = in.SemesterID
	}

	if err := s.subjects.Update(ctx, sub); err != nil {
		return nil, err
	}
	return s.subjects.GetByID(ctx, id)
}

func (s *CatalogService) DeleteSubject(ctx context.Context, id string) error {
	return s.subjects.Delete(ctx, id)
}

// SubjectsOf returns the subjects assigned to userID: the ones a teacher
// teaches or a student is enrolled in.
func (s *CatalogService) SubjectsOf(ctx context.Context, userID string) ([]model.Subject, error) {
	byUser, err := s.assignments.SubjectsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing subjects of %s: %w", userID, err)
	}
	if subs := byUser[userID]; subs != nil {
		return subs, nil
	}
	return []model.Subject{}, nil
}

func (s *CatalogService) requireCareer(ctx context.Context, id string) error {
	_, err := s.careers.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.ValidationFailed("idCarrera", "the given career does not exist")
	}
	return err
}

// uniqueCode returns base, or base followed by the smallest suffix from 2 up
// that no subject uses.
func (s *CatalogService) uniqueCode(ctx context.Context, base string) (string, error) {
	if base == "" {
		base = "MAT"
	}
	for i := 1; i <= maxCodeAttempts; i++ {
		code := base
		if i > 1 {
			code = base + strconv.Itoa(i)
		}
		taken, err := s.subjects.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("service/catalog: checking code %s: %w", code, err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", apperror.Conflict("could not allocate a unique subject code for " + base)
}
