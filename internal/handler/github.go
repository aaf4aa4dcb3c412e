package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/service"
)

// LinkFlow is the part of *service.LinkService the handler uses.
type LinkFlow interface {
	StartURL(identity string, intent model.AccountType) (string, error)
	Complete(ctx context.Context, cb service.Callback) (*model.Credential, error)
}

// InstallationFlow is the part of *service.InstallationService the handler uses.
type InstallationFlow interface {
	Complete(ctx context.Context, rawID, token string) (*model.Installation, error)
	Backfill(ctx context.Context, userID string) ([]int64, error)
}

type Provisioner interface {
	Provision(ctx context.Context, userID, projectID string) (*service.ProvisionResult, error)
}

type Inviter interface {
	InvitePersonal(ctx context.Context, userID string) (*service.InviteReport, error)
}

// GitHubAccounts is the part of *service.AccountService the handler uses.
type GitHubAccounts interface {
	Overview(ctx context.Context, userID string) (*service.Overview, error)
	Repos(ctx context.Context, userID string) ([]service.RepoSummary, error)
	ReposFull(ctx context.Context, userID string) ([]service.RepoDetail, error)
	ImportRepos(ctx context.Context, userID string) (*service.ImportResult, error)
	SyncRepos(ctx context.Context, userID string) ([]service.SyncedRepo, error)
	AppInfo(ctx context.Context) (*githubapi.AppInfo, error)
	InstallationInfo(ctx context.Context, rawID string) (*githubapi.InstallationInfo, error)
}

const (
	// installSessionName is the signed cookie holding the session token
	// between /app/install and /app/installed, for when GitHub drops state.
	installSessionName = "gh_install"
	installTokenKey    = "t"

	oauthErrorMessage   = "GitHub OAuth error"
	installErrorMessage = "unexpected error"
)

// GitHubHandler serves the /github routes: account linking, App
// installation, repository provisioning, invitations and account utilities.
//
// Browser-facing flows (OAuth callback, App install callback) never answer
// with JSON errors. Every outcome is a redirect to the front end:
//
//	<frontend>/?linked=ok              <frontend>/?linked_error=<message>
//	<frontend>/?app_install=ok         <frontend>/?app_install_error=<message>
type GitHubHandler struct {
	link        LinkFlow
	installs    InstallationFlow
	provision   Provisioner
	invites     Inviter
	accounts    GitHubAccounts
	sessions    sessions.Store
	frontendURL string
	installURL  string
	logger      *slog.Logger
}

type GitHubHandlerDeps struct {
	Link      LinkFlow
	Installs  InstallationFlow
	Provision Provisioner
	Invites   Inviter
	Accounts  GitHubAccounts
	// Sessions stores the install fallback cookie.
	Sessions    sessions.Store
	FrontendURL string
	// InstallURL is the App's public install page,
	// https://github.com/apps/<slug>/installations/new. Empty disables
	// /app/install.
	InstallURL string
	Logger     *slog.Logger
}

func NewGitHubHandler(d GitHubHandlerDeps) *GitHubHandler {
	return &GitHubHandler{
		link:        d.Link,
		installs:    d.Installs,
		provision:   d.Provision,
		invites:     d.Invites,
		accounts:    d.Accounts,
		sessions:    d.Sessions,
		frontendURL: strings.TrimRight(d.FrontendURL, "/"),
		installURL:  d.InstallURL,
		logger:      d.Logger,
	}
}

// NewInstallSessionStore returns the cookie store used for the install
// fallback. Cookies are signed with secret and live ten minutes.
func NewInstallSessionStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (h *GitHubHandler) redirect(w http.ResponseWriter, r *http.Request, key, value string) {
	http.Redirect(w, r, h.frontendURL+"/?"+key+"="+url.QueryEscape(value), http.StatusFound)
}

// ---- OAuth linking ----

// HandleOAuthStart redirects to GitHub's authorize page.
//
// HTTP: GET /github/oauth/start?type=INSTITUTIONAL|PERSONAL&t=<token>
// Auth: Required
//
// The token RequireAuth accepted travels inside the signed state, so the
// callback knows who is linking without a cookie. ?t= is used only when no
// token is in the context.
func (h *GitHubHandler) HandleOAuthStart(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.TokenFromContext(r.Context())
	if identity == "" {
		identity = r.URL.Query().Get("t")
	}

	intent := model.AccountType(r.URL.Query().Get("type"))
	target, err := h.link.StartURL(identity, intent)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleOAuthCallback completes a link.
//
// HTTP: GET /github/oauth/callback?code=xxx&state=yyy
func (h *GitHubHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	_, err := h.link.Complete(r.Context(), service.Callback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		h.logger.Warn("github link failed", slog.String("error", err.Error()))
		h.redirect(w, r, "linked_error", apperror.MessageOf(err, oauthErrorMessage))
		return
	}
	h.redirect(w, r, "linked", "ok")
}

// ---- App installation ----

// HandleAppInstall redirects to the App's install page.
//
// HTTP: GET /github/app/install?t=<token>
//
// GitHub echoes state back to the setup URL only in some flows, so the token
// is also kept in a signed cookie for HandleAppInstalled.
func (h *GitHubHandler) HandleAppInstall(w http.ResponseWriter, r *http.Request) {
	if h.installURL == "" {
		http.Error(w, "GitHub App install URL is not configured", http.StatusInternalServerError)
		return
	}

	token := r.URL.Query().Get("t")
	// A bad or foreign cookie yields a fresh session; the error is not useful.
	sess, _ := h.sessions.Get(r, installSessionName)
	sess.Values[installTokenKey] = token
	if err := sess.Save(r, w); err != nil {
		h.logger.Warn("saving install session failed", slog.String("error", err.Error()))
	}

	http.Redirect(w, r, service.InstallURL(h.installURL, token), http.StatusFound)
}

// HandleAppInstalled records an installation.
//
// HTTP: GET /github/app/installed?installation_id=123&state=<token>
func (h *GitHubHandler) HandleAppInstalled(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess, _ := h.sessions.Get(r, installSessionName)

	token := q.Get("state")
	if token == "" {
		token, _ = sess.Values[installTokenKey].(string)
	}

	_, err := h.installs.Complete(r.Context(), q.Get("installation_id"), token)
	if err != nil {
		h.logger.Warn("github app install failed", slog.String("error", err.Error()))
		h.redirect(w, r, "app_install_error", apperror.MessageOf(err, installErrorMessage))
		return
	}

	delete(sess.Values, installTokenKey)
	if sess.Options != nil {
		sess.Options.MaxAge = -1
	}
	if err := sess.Save(r, w); err != nil {
		h.logger.Warn("clearing install session failed", slog.String("error", err.Error()))
	}
	h.redirect(w, r, "app_install", "ok")
}

// HandleBackfill refreshes the account of every installation of the caller.
//
// HTTP: POST /github/app/backfill
// Auth: Required
func (h *GitHubHandler) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	updated, err := h.installs.Backfill(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": updated})
}

// ---- provisioning and invitations ----

type provisionResponse struct {
	OK bool `json:"ok"`
	*service.ProvisionResult
}

// HandleProvisionRepo creates the repository of a project.
//
// HTTP: POST /github/project/{id}/repo
// Auth: Required, caller must be the project OWNER
func (h *GitHubHandler) HandleProvisionRepo(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	res, err := h.provision.Provision(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, provisionResponse{OK: true, ProvisionResult: res})
}

type inviteResponse struct {
	OK      bool                    `json:"ok"`
	Invited []service.InviteAttempt `json:"invited"`
	Failed  []service.InviteAttempt `json:"failed"`
	Reason  string                  `json:"reason,omitempty"`
	Error   string                  `json:"error,omitempty"`
	Detail  string                  `json:"detail,omitempty"`
}

// HandleInvitePersonal invites the caller's PERSONAL account to the
// repository of every project they belong to.
//
// HTTP: POST /github/me/invite-personal-on-all
// HTTP: POST /github/me/retry-invites
// Auth: Required
//
// Failures answer 200 with ok=false so the front end can show the message
// next to the (empty) lists.
func (h *GitHubHandler) HandleInvitePersonal(fallback string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}
		report, err := h.invites.InvitePersonal(r.Context(), userID)
		if err != nil {
			h.logger.Warn("inviting personal account failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
			resp := inviteResponse{
				Invited: []service.InviteAttempt{},
				Failed:  []service.InviteAttempt{},
				Error:   apperror.MessageOf(err, fallback),
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}
		writeJSON(w, http.StatusOK, inviteResponse{
			OK:      true,
			Invited: report.Invited,
			Failed:  report.Failed,
			Reason:  report.Reason,
		})
	}
}

// ---- account utilities ----

// HandleOverview: GET /github/me/overview
func (h *GitHubHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	ov, err := h.accounts.Overview(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// HandleRepos: GET /github/me/repos
func (h *GitHubHandler) HandleRepos(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	repos, err := h.accounts.Repos(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repos": repos})
}

// HandleReposFull: GET /github/me/repos/full
func (h *GitHubHandler) HandleReposFull(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	repos, err := h.accounts.ReposFull(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"repos": repos})
}

type importResponse struct {
	OK bool `json:"ok"`
	*service.ImportResult
}

// HandleImportRepos: POST /github/import/repos
func (h *GitHubHandler) HandleImportRepos(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	res, err := h.accounts.ImportRepos(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{OK: true, ImportResult: res})
}

// HandleSyncRepos: POST /github/me/sync-repos
func (h *GitHubHandler) HandleSyncRepos(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	items, err := h.accounts.SyncRepos(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(items), "items": items})
}

// HandleHealthz: GET /github/healthz
func (h *GitHubHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleDebugApp reports which App the server authenticates as.
//
// HTTP: GET /github/debug/app
func (h *GitHubHandler) HandleDebugApp(w http.ResponseWriter, r *http.Request) {
	info, err := h.accounts.AppInfo(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok": false, "where": "GET /app", "message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "id": info.ID, "slug": info.Slug, "name": info.Name,
	})
}

// HandleDebugInstallation reports the account an installation belongs to.
//
// HTTP: GET /github/debug/install/{id}
func (h *GitHubHandler) HandleDebugInstallation(w http.ResponseWriter, r *http.Request) {
	info, err := h.accounts.InstallationInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, _ := StatusOf(err)
		if status == http.StatusBadGateway {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{
			"ok": false, "where": "GET /app/installations", "message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "account": info.AccountLogin, "appId": info.AppID,
	})
}
