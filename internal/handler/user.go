package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
	"github.com/Ross11547/Automatizacion/internal/service"
)

// Users is the part of *service.UserService the handler uses.
type Users interface {
	List(ctx context.Context, f repository.UserFilter) ([]model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	Create(ctx context.Context, in service.NewUser) (*model.User, error)
	Update(ctx context.Context, id string, p service.UserPatch) (*model.User, error)
	Delete(ctx context.Context, id string) (*model.User, error)
}

// UserHandler serves /usuario.
type UserHandler struct {
	users  Users
	logger *slog.Logger
}

func NewUserHandler(u Users, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: u, logger: logger}
}

// userResponse is the /usuario envelope; these routes answer with "mensaje".
type userResponse struct {
	Data    any    `json:"data"`
	Message string `json:"mensaje"`
}

type createUserRequest struct {
	FirstName       string `json:"nombre" validate:"max=100"`
	LastName        string `json:"apellido" validate:"max=100"`
	Phone           string `json:"telefono" validate:"max=30"`
	CI              int64  `json:"ci"`
	Email           string `json:"correo" validate:"max=254"`
	Password        string `json:"password" validate:"max=72"`
	ConfirmPassword string `json:"confirmaPassword"`
	RoleID          string `json:"idRol"`
	Active          *bool  `json:"activo"`
}

type updateUserRequest struct {
	FirstName *string `json:"nombre" validate:"omitempty,max=100"`
	LastName  *string `json:"apellido" validate:"omitempty,max=100"`
	Phone     *string `json:"telefono" validate:"omitempty,max=30"`
	CI        *int64  `json:"ci"`
	Email     *string `json:"correo" validate:"omitempty,max=254"`
	Password  *string `json:"password" validate:"omitempty,max=72"`
	RoleID    *string `json:"idRol"`
	FacultyID *string `json:"idFacultad"`
	CareerID  *string `json:"idCarrera"`
	Active    *bool   `json:"activo"`
}

// HandleList: GET /usuario?q=&idRol=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), repository.UserFilter{
		RoleID: r.URL.Query().Get("idRol"),
		Query:  r.URL.Query().Get("q"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Data: users, Message: "users retrieved"})
}

// HandleGet: GET /usuario/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Data: u, Message: "user retrieved"})
}

// HandleCreate: POST /usuario
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	u, err := h.users.Create(r.Context(), service.NewUser{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		CI:              req.CI,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		RoleID:          req.RoleID,
		Active:          active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{Data: u, Message: "user created"})
}

// HandleUpdate: PUT /usuario/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), service.UserPatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		CI:        req.CI,
		Email:     req.Email,
		Password:  req.Password,
		RoleID:    req.RoleID,
		FacultyID: req.FacultyID,
		CareerID:  req.CareerID,
		Active:    req.Active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Data: u, Message: "user updated"})
}

// HandleDelete: DELETE /usuario/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Data: u, Message: "user deleted"})
}
