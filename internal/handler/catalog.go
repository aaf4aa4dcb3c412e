package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
	"github.com/Ross11547/Automatizacion/internal/service"
)

// Catalog is the part of *service.CatalogService the handler uses.
type Catalog interface {
	ListFaculties(ctx context.Context) ([]model.Faculty, error)
	GetFaculty(ctx context.Context, id string) (*model.Faculty, error)
	CreateFaculty(ctx context.Context, name string, theme json.RawMessage) (*model.Faculty, error)
	UpdateFaculty(ctx context.Context, id string, name *string, theme json.RawMessage) (*model.Faculty, error)
	DeleteFaculty(ctx context.Context, id string) error

	ListCareers(ctx context.Context) ([]model.Career, error)
	GetCareer(ctx context.Context, id string) (*model.Career, error)
	CreateCareer(ctx context.Context, in service.CareerInput) (*model.Career, error)
	UpdateCareer(ctx context.Context, id string, in service.CareerInput) (*model.Career, error)
	DeleteCareer(ctx context.Context, id string) error

	ListSubjects(ctx context.Context, f repository.SubjectFilter) ([]model.Subject, error)
	GetSubject(ctx context.Context, id string) (*model.Subject, error)
	CreateSubject(ctx context.Context, in service.SubjectInput) (*model.Subject, error)
	UpdateSubject(ctx context.Context, id string, in service.SubjectInput) (*model.Subject, error)
	DeleteSubject(ctx context.Context, id string) error
	SubjectsBySemester(ctx context.Context, semesterID string) ([]model.Subject, error)
	SubjectsOf(ctx context.Context, userID string) ([]model.Subject, error)

	ListSemesters(ctx context.Context, careerID string) ([]model.Semester, error)
	SemestersByCareer(ctx context.Context, careerID string) ([]model.Semester, error)
	GetSemester(ctx context.Context, id string) (*model.Semester, error)
	CreateSemester(ctx context.Context, in service.SemesterInput) (*model.Semester, error)
	UpdateSemester(ctx context.Context, id string, in service.SemesterInput) (*model.Semester, error)
	DeleteSemester(ctx context.Context, id string) error

	ListSchedules(ctx context.Context) ([]model.Schedule, error)
	SchedulesBySubject(ctx context.Context, subjectID string) ([]model.Schedule, error)
	GetSchedule(ctx context.Context, id string) (*model.Schedule, error)
	CreateSchedule(ctx context.Context, in service.ScheduleInput) (*model.Schedule, error)
	UpdateSchedule(ctx context.Context, id string, in service.ScheduleInput) (*model.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// CatalogHandler serves /facultad, /carrera, /semestre, /materia and
// /horario.
type CatalogHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewCatalogHandler(c Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, logger: logger}
}

// ---- faculties ----

type facultyRequest struct {
	Name  *string         `json:"nombre" validate:"omitempty,max=150"`
	Theme json.RawMessage `json:"theme"`
}

func (h *CatalogHandler) HandleListFaculties(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.ListFaculties(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, out, "faculties retrieved")
}

func (h *CatalogHandler) HandleGetFaculty(w http.ResponseWriter, r *http.Request) {
	f, err := h.catalog.GetFaculty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, f, "faculty retrieved")
}

func (h *CatalogHandler) HandleCreateFaculty(w http.ResponseWriter, r *http.Request) {
	var req facultyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var name string
	if req.Name != nil {
		name = *req.Name
	}
	f, err := h.catalog.CreateFaculty(r.Context(), name, req.Theme)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, f, "faculty created")
}

func (h *CatalogHandler) HandleUpdateFaculty(w http.ResponseWriter, r *http.Request) {
	var req facultyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	f, err := h.catalog.UpdateFaculty(r.Context(), chi.URLParam(r, "id"), req.Name, req.Theme)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, f, "faculty updated")
}

func (h *CatalogHandler) HandleDeleteFaculty(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteFaculty(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil, "faculty deleted")
}

// ---- careers ----

type careerRequest struct {
	Name         string `json:"nombre" validate:"max=150"`
	Abbreviation string `json:"sigla" validate:"max=10"`
	FacultyID    string `json:"idFacultad"`
}

func (req careerRequest) input() service.CareerInput {
	return service.CareerInput{Name: req.Name, Abbreviation: req.Abbreviation, FacultyID: req.FacultyID}
}

func (h *CatalogHandler) HandleListCareers(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.ListCareers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, out, "careers retrieved")
}

func (h *CatalogHandler) HandleGetCareer(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.GetCareer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, c, "career retrieved")
}

func (h *CatalogHandler) HandleCreateCareer(w http.ResponseWriter, r *http.Request) {
	var req careerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.catalog.CreateCareer(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, c, "career created")
}

func (h *CatalogHandler) HandleUpdateCareer(w http.ResponseWriter, r *http.Request) {
	var req careerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.catalog.UpdateCareer(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, c, "career updated")
}

func (h *CatalogHandler) HandleDeleteCareer(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCareer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil, "career deleted")
}

// ---- subjects ----

type subjectRequest struct {
	Name       string `json:"nombre" validate:"max=150"`
	CareerID   string `json:"idCarrera"`
	SemesterID string `json:"semestreId"`
}

func (req subjectRequest) input() service.SubjectInput {
	return service.SubjectInput{Name: req.Name, CareerID: req.CareerID, SemesterID: req.SemesterID}
}

// HandleListSubjects: GET /materia?idCarrera=&q=
func (h *CatalogHandler) HandleListSubjects(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.ListSubjects(r.Context(), repository.SubjectFilter{
		CareerID: r.URL.Query().Get("idCarrera"),
		Query:    r.URL.Query().Get("q"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, out, "subjects retrieved")
}

func (h *CatalogHandler) HandleGetSubject(w http.ResponseWriter, r *http.Request) {
	s, err := h.catalog.GetSubject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s, "subject retrieved")
}

// HandleCreateSubject: POST /materia
//
// The code is derived from the name; a "codigo" in the body is ignored.
func (h *CatalogHandler) HandleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s, err := h.catalog.CreateSubject(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, s, "subject created")
}

func (h *CatalogHandler) HandleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s, err := h.catalog.UpdateSubject(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s, "subject updated")
}

func (h *CatalogHandler) HandleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteSubject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil, "subject deleted")
}

// HandleSubjectsBySemester: GET /materia/by-semestre?semestreId=
func (h *CatalogHandler) HandleSubjectsBySemester(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.SubjectsBySemester(r.Context(), r.URL.Query().Get("semestreId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, out, "subjects retrieved")
}

// HandleMySubjects: GET /materias/mias
// Auth: Required
func (h *CatalogHandler) HandleMySubjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("not authenticated"))
		return
	}
	out, err := h.catalog.SubjectsOf(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, out, "subjects retrieved")
}

// ---- semesters ----

type semesterRequest struct {
	Number   int    `json:"numero" validate:"min=0,max=20"`
	CareerID string `json:"carreraId"`
}

func (req semesterRequest) input() service.SemesterInput {
	return service.SemesterInput{Number: req.Number, CareerID: req.CareerID}
}

func (h *CatalogHandler) HandleListSemesters(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.ListSemesters(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, out, "semesters retrieved")
}

// HandleSemestersByCareer: GET /semestre/by-carrera?carreraId=
func (h *CatalogHandler) HandleSemestersByCareer(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.SemestersByCareer(r.Context(), r.URL.Query().Get("carreraId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, out, "semesters retrieved")
}

func (h *CatalogHandler) HandleGetSemester(w http.ResponseWriter, r *http.Request) {
	s, err := h.catalog.GetSemester(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s, "semester retrieved")
}

// HandleCreateSemester: POST /semestre
//
// The label is derived from the number.
func (h *CatalogHandler) HandleCreateSemester(w http.ResponseWriter, r *http.Request) {
	var req semesterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s, err := h.catalog.CreateSemester(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, s, "semester created")
}

func (h *CatalogHandler) HandleUpdateSemester(w http.ResponseWriter, r *http.Request) {
	var req semesterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s, err := h.catalog.UpdateSemester(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s, "semester updated")
}

func (h *CatalogHandler) HandleDeleteSemester(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteSemester(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil, "semester deleted")
}

// ---- schedules ----

type scheduleRequest struct {
	SubjectID string `json:"materiaId"`
	Day       string `json:"dia" validate:"max=20"`
	Start     string `json:"horaInicio" validate:"max=5"`
	End       string `json:"horaFin" validate:"max=5"`
	Room      string `json:"aula" validate:"max=50"`
}

func (req scheduleRequest) input() service.ScheduleInput {
	return service.ScheduleInput{SubjectID: req.SubjectID, Day: req.Day, Start: req.Start, End: req.End, Room: req.Room}
}

func (h *CatalogHandler) HandleListSchedules(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.ListSchedules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, out, "schedules retrieved")
}

// HandleSchedulesBySubject: GET /horario/by-materia?materiaId=
func (h *CatalogHandler) HandleSchedulesBySubject(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.SchedulesBySubject(r.Context(), r.URL.Query().Get("materiaId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, out, "schedules retrieved")
}

func (h *CatalogHandler) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.catalog.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s, "schedule retrieved")
}

// HandleCreateSchedule: POST /horario
//
// Slots of one subject may not overlap on the same day.
func (h *CatalogHandler) HandleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s, err := h.catalog.CreateSchedule(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, s, "schedule created")
}

func (h *CatalogHandler) HandleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s, err := h.catalog.UpdateSchedule(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s, "schedule updated")
}

func (h *CatalogHandler) HandleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil, "schedule deleted")
}
