package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

var ordinals = []string{"", "Primer", "Segundo", "Tercer", "Cuarto", "Quinto", "Sexto",
	"Séptimo", "Octavo", "Noveno", "Décimo", "Undécimo", "Duodécimo"}

// SemesterLabel names a semester number: "Primer semestre" through
// "Duodécimo semestre", then "Semestre 13" and so on.
func SemesterLabel(n int) string {
	if n >= 1 && n < len(ordinals) {
		return ordinals[n] + " semestre"
	}
	return "Semestre " + strconv.Itoa(n)
}

// ---- semesters ----

// SemesterInput carries the writable semester fields. A zero Number or an
// empty CareerID keeps the current value on update.
type SemesterInput struct {
	Number   int
	CareerID string
}

func (s *CatalogService) ListSemesters(ctx context.Context, careerID string) ([]model.Semester, error) {
	return s.semesters.List(ctx, careerID)
}

// SemestersByCareer is ListSemesters with a required, existing career.
func (s *CatalogService) SemestersByCareer(ctx context.Context, careerID string) ([]model.Semester, error) {
	if careerID == "" {
		return nil, apperror.ValidationFailed("carreraId", "carreraId is required")
	}
	if err := s.requireCareer(ctx, careerID); err != nil {
		return nil, err
	}
	return s.semesters.List(ctx, careerID)
}

func (s *CatalogService) GetSemester(ctx context.Context, id string) (*model.Semester, error) {
	return s.semesters.GetByID(ctx, id)
}

// CreateSemester stores a semester labelled after its number. The number is
// unique within the career.
func (s *CatalogService) CreateSemester(ctx context.Context, in SemesterInput) (*model.Semester, error) {
	if in.Number < 1 {
		return nil, apperror.ValidationFailed("numero", "numero must be 1 or greater")
	}
	if in.CareerID == "" {
		return nil, apperror.ValidationFailed("carreraId", "carreraId is required")
	}
	if err := s.requireCareer(ctx, in.CareerID); err != nil {
		return nil, err
	}

	sem := &model.Semester{Number: in.Number, Label: SemesterLabel(in.Number), CareerID: in.CareerID}
	if err := s.semesters.Create(ctx, sem); err != nil {
		return nil, err
	}
	s.logger.Info("semester created", slog.String("id", sem.ID), slog.Int("number", sem.Number))
	return s.semesters.GetByID(ctx, sem.ID)
}

func (s *CatalogService) UpdateSemester(ctx context.Context, id string, in SemesterInput) (*model.Semester, error) {
	sem, err := s.semesters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Number < 0 {
		return nil, apperror.ValidationFailed("numero", "numero must be 1 or greater")
	}
	if in.Number > 0 {
		sem.Number = in.Number
		sem.Label = SemesterLabel(in.Number)
	}
	if in.CareerID != "" {
		if err := s.requireCareer(ctx, in.CareerID); err != nil {
			return nil, err
		}
		sem.CareerID = in.CareerID
	}
	if err := s.semesters.Update(ctx, sem); err != nil {
		return nil, err
	}
	return s.semesters.GetByID(ctx, id)
}

func (s *CatalogService) DeleteSemester(ctx context.Context, id string) error {
	return s.semesters.Delete(ctx, id)
}

// SubjectsBySemester lists the subjects of an existing semester by name.
func (s *CatalogService) SubjectsBySemester(ctx context.Context, semesterID string) ([]model.Subject, error) {
	if semesterID == "" {
		return nil, apperror.ValidationFailed("semestreId", "semestreId is required")
	}
	if _, err := s.lookupSemester(ctx, semesterID); err != nil {
		return nil, err
	}
	return s.subjects.List(ctx, repository.SubjectFilter{SemesterID: semesterID})
}

func (s *CatalogService) lookupSemester(ctx context.Context, id string) (*model.Semester, error) {
	sem, err := s.semesters.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.ValidationFailed("semestreId", "the given semester does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("service/catalog: loading semester: %w", err)
	}
	return sem, nil
}

// requireSemesterOf checks that semesterID, when set, exists and belongs to
// careerID.
func (s *CatalogService) requireSemesterOf(ctx context.Context, semesterID, careerID string) error {
	if semesterID == "" {
		return nil
	}
	sem, err := s.lookupSemester(ctx, semesterID)
	if err != nil {
		return err
	}
	if careerID != "" && sem.CareerID != careerID {
		return apperror.ValidationFailed("semestreId", "the semester does not belong to the selected career")
	}
	return nil
}

// ---- schedules ----

// ScheduleInput carries the writable schedule fields. Empty fields keep the
// current value on update.
type ScheduleInput struct {
	SubjectID string
	Day       string
	Start     string
	End       string
	Room      string
}

func (s *CatalogService) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	return s.schedules.List(ctx, "")
}

// SchedulesBySubject lists the weekly slots of an existing subject.
func (s *CatalogService) SchedulesBySubject(ctx context.Context, subjectID string) ([]model.Schedule, error) {
	if subjectID == "" {
		return nil, apperror.ValidationFailed("materiaId", "materiaId is required")
	}
	if err := s.requireSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.schedules.List(ctx, subjectID)
}

func (s *CatalogService) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	return s.schedules.GetByID(ctx, id)
}

// CreateSchedule stores a slot after checking it does not overlap another
// slot of the same subject on the same day.
func (s *CatalogService) CreateSchedule(ctx context.Context, in ScheduleInput) (*model.Schedule, error) {
	if in.SubjectID == "" || in.Day == "" || in.Start == "" || in.End == "" {
		return nil, apperror.ValidationFailed("", "materiaId, dia, horaInicio and horaFin are required")
	}
	h := &model.Schedule{SubjectID: in.SubjectID, Room: strings.TrimSpace(in.Room)}
	if err := s.applySchedule(ctx, h, in); err != nil {
		return nil, err
	}
	if err := s.schedules.Create(ctx, h); err != nil {
		return nil, err
	}
	s.logger.Info("schedule created",
		slog.String("id", h.ID),
		slog.String("subject", h.SubjectID),
		slog.String("day", h.Day),
	)
	return s.schedules.GetByID(ctx, h.ID)
}

func (s *CatalogService) UpdateSchedule(ctx context.Context, id string, in ScheduleInput) (*model.Schedule, error) {
	h, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.SubjectID != "" {
		h.SubjectID = in.SubjectID
	}
	if in.Room != "" {
		h.Room = strings.TrimSpace(in.Room)
	}
	if err := s.applySchedule(ctx, h, in); err != nil {
		return nil, err
	}
	if err := s.schedules.Update(ctx, h); err != nil {
		return nil, err
	}
	return s.schedules.GetByID(ctx, id)
}

func (s *CatalogService) DeleteSchedule(ctx context.Context, id string) error {
	return s.schedules.Delete(ctx, id)
}

// applySchedule normalizes the day and times of in onto h and validates the
// resulting slot. h.SubjectID must already be set.
func (s *CatalogService) applySchedule(ctx context.Context, h *model.Schedule, in ScheduleInput) error {
	if err := s.requireSubject(ctx, h.SubjectID); err != nil {
		return err
	}
	if in.Day != "" {
		day := strings.ToUpper(StripDiacritics(strings.TrimSpace(in.Day)))
		if !slices.Contains(model.Weekdays, day) {
			return apperror.ValidationFailed("dia", "dia must be one of "+strings.Join(model.Weekdays, ", "))
		}
		h.Day = day
	}
	for _, f := range []struct {
		field, value string
		dst          *string
	}{
		{"horaInicio", in.Start, &h.Start},
		{"horaFin", in.End, &h.End},
	} {
		if f.value == "" {
			continue
		}
		hhmm, err := clockTime(f.value)
		if err != nil {
			return apperror.ValidationFailed(f.field, f.field+" must be HH:MM")
		}
		*f.dst = hhmm
	}
	if h.End <= h.Start {
		return apperror.ValidationFailed("horaFin", "horaFin must be after horaInicio")
	}

	overlap, err := s.schedules.Overlaps(ctx, h.SubjectID, h.Day, h.Start, h.End, h.ID)
	if err != nil {
		return fmt.Errorf("service/catalog: checking overlap: %w", err)
	}
	if overlap {
		return apperror.ValidationFailed("horaInicio", "the slot overlaps another schedule of the subject on "+h.Day)
	}
	return nil
}

func (s *CatalogService) requireSubject(ctx context.Context, id string) error {
	_, err := s.subjects.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.ValidationFailed("materiaId", "the given subject does not exist")
	}
	return err
}

// clockTime accepts exactly "HH:MM" on a 24-hour clock.
func clockTime(v string) (string, error) {
	v = strings.TrimSpace(v)
	if len(v) != len("15:04") {
		return "", fmt.Errorf("invalid time %q", v)
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return "", err
	}
	return t.Format("15:04"), nil
}
