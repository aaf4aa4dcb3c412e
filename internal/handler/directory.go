package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ross11547/Automatizacion/internal/service"
)

// Directory is the part of *service.DirectoryService the handler uses.
type Directory interface {
	List(ctx context.Context, query string) ([]service.Person, error)
	Get(ctx context.Context, id string) (*service.Person, error)
	Create(ctx context.Context, in service.PersonInput) (*service.Person, error)
	Update(ctx context.Context, id string, p service.PersonPatch) (*service.Person, error)
	Delete(ctx context.Context, id string) error
}

// DirectoryHandler serves one role directory: /docente, /estudiante or
// /director. The noun names the role in response messages.
type DirectoryHandler struct {
	dir    Directory
	noun   string
	logger *slog.Logger
}

func NewDirectoryHandler(d Directory, noun string, logger *slog.Logger) *DirectoryHandler {
	return &DirectoryHandler{dir: d, noun: noun, logger: logger}
}

type createPersonRequest struct {
	FirstName  string   `json:"nombre" validate:"required,max=100"`
	LastName   string   `json:"apellido" validate:"max=100"`
	Phone      string   `json:"telefono" validate:"max=30"`
	CI         int64    `json:"ci" validate:"required"`
	Email      string   `json:"correo" validate:"omitempty,email,max=150"`
	FacultyID  string   `json:"idFacultad"`
	CareerID   string   `json:"idCarrera"`
	SemesterID string   `json:"semestreId"`
	SubjectIDs []string `json:"materiaIds"`
	Password   string   `json:"password" validate:"max=72"`
	Active     *bool    `json:"activo"`
}

type updatePersonRequest struct {
	FirstName  *string  `json:"nombre" validate:"omitempty,max=100"`
	LastName   *string  `json:"apellido" validate:"omitempty,max=100"`
	Phone      *string  `json:"telefono" validate:"omitempty,max=30"`
	CI         *int64   `json:"ci"`
	Email      *string  `json:"correo" validate:"omitempty,max=150"`
	FacultyID  *string  `json:"idFacultad"`
	CareerID   *string  `json:"idCarrera"`
	SemesterID *string  `json:"semestreId"`
	SubjectIDs []string `json:"materiaIds"`
	Password   *string  `json:"password" validate:"omitempty,max=72"`
	Active     *bool    `json:"activo"`
}

// HandleList: GET /<directory>?q=
func (h *DirectoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	people, err := h.dir.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, people, h.noun+"s retrieved")
}

// HandleGet: GET /<directory>/{id}
func (h *DirectoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.dir.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, p, h.noun+" retrieved")
}

// HandleCreate: POST /<directory>
//
// The code is derived from the career and ci, and the email from the name;
// the caller cannot set them, except for a director's institutional email.
func (h *DirectoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.dir.Create(r.Context(), service.PersonInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		CI:         req.CI,
		Email:      req.Email,
		FacultyID:  req.FacultyID,
		CareerID:   req.CareerID,
		SemesterID: req.SemesterID,
		SubjectIDs: req.SubjectIDs,
		Password:   req.Password,
		Active:     req.Active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, p, h.noun+" created")
}

// HandleUpdate: PUT /<directory>/{id}
//
// Absent fields are kept. "materiaIds": [] removes every subject.
func (h *DirectoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updatePersonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.dir.Update(r.Context(), chi.URLParam(r, "id"), service.PersonPatch{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		CI:         req.CI,
		Email:      req.Email,
		FacultyID:  req.FacultyID,
		CareerID:   req.CareerID,
		SemesterID: req.SemesterID,
		SubjectIDs: req.SubjectIDs,
		Password:   req.Password,
		Active:     req.Active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, p, h.noun+" updated")
}

// HandleDelete: DELETE /<directory>/{id}
func (h *DirectoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.dir.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil, h.noun+" deleted")
}
