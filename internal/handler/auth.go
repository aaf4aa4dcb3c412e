package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/service"
)

// Authenticator is the part of *service.AuthService the handler uses.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler serves password login and the current-user endpoint.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin → check email and password, return the user and a session token
//   - HandleMe    → return the currently logged-in user's profile
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

func NewAuthHandler(a Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: a, logger: logger}
}

type loginRequest struct {
	Email    string `json:"correo" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Message string      `json:"mensaje"`
	Data    *model.User `json:"data"`
	Token   string      `json:"token"`
}

// HandleLogin authenticates an institutional account.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"correo": "ana.rojas@unifranz.edu.bo", "password": "..."}
//
// The token goes in the response body; the front end sends it back as
// "Authorization: Bearer <token>" or, on browser redirects, as ?t=<token>.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message: "login successful",
		Data:    res.User,
		Token:   res.Token,
	})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user not found", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// callerID returns the authenticated user id. Routes using it are mounted
// behind RequireAuth, so a missing id is a wiring bug and answers 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "not authenticated"})
	}
	return id, ok
}
