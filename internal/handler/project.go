package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/service"
)

// Projects is the part of *service.ProjectService the handler uses.
type Projects interface {
	Create(ctx context.Context, userID string, in service.NewProject) (*model.Project, error)
	AddMember(ctx context.Context, callerID, projectID string, in service.NewMember) (*model.Membership, error)
	ListMine(ctx context.Context, userID string) ([]service.MyProject, error)
}

// ProjectHandler serves /projects. Every route requires authentication.
type ProjectHandler struct {
	projects Projects
	logger   *slog.Logger
}

func NewProjectHandler(p Projects, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: p, logger: logger}
}

type createProjectRequest struct {
	Title     string `json:"titulo" validate:"required,max=200"`
	GroupType string `json:"tipoGrupo" validate:"omitempty,oneof=GROUP INDIVIDUAL"`
	SubjectID string `json:"materiaId" validate:"required"`
}

// HandleCreate: POST /projects
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.projects.Create(r.Context(), userID, service.NewProject{
		Title:     req.Title,
		GroupType: model.GroupType(req.GroupType),
		SubjectID: req.SubjectID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "project": p})
}

type addMemberRequest struct {
	UserID string `json:"usuarioId" validate:"required_without=Email"`
	Email  string `json:"correo" validate:"omitempty,email"`
	Role   string `json:"rol"`
}

// HandleAddMember: POST /projects/{id}/members
func (h *ProjectHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := h.projects.AddMember(r.Context(), userID, chi.URLParam(r, "id"), service.NewMember{
		UserID: req.UserID,
		Email:  req.Email,
		Role:   model.MemberRole(req.Role),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "miembro": m})
}

// HandleListMine: GET /projects/my
func (h *ProjectHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	projects, err := h.projects.ListMine(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}
