package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/handler"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/service"
)

const frontend = "http://front.test"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// asUser marks every request as authenticated by userID, standing in for
// auth.RequireAuth.
func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

type fakeLink struct {
	startErr    error
	completeErr error
	identity    string
	intent      model.AccountType
	callback    service.Callback
}

func (f *fakeLink) StartURL(identity string, intent model.AccountType) (string, error) {
	f.identity, f.intent = identity, intent
	if f.startErr != nil {
		return "", f.startErr
	}
	return "https://github.test/authorize?state=s", nil
}

func (f *fakeLink) Complete(_ context.Context, cb service.Callback) (*model.Credential, error) {
	f.callback = cb
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &model.Credential{UserID: "u1", AccountType: model.AccountPersonal}, nil
}

type fakeInstalls struct {
	rawID, token string
	calls        int
}

func (f *fakeInstalls) Complete(_ context.Context, rawID, token string) (*model.Installation, error) {
	f.calls++
	f.rawID, f.token = rawID, token
	if token == "" {
		return nil, apperror.Unauthenticated("not authenticated")
	}
	return &model.Installation{UserID: "u1", InstallationID: 42}, nil
}

func (f *fakeInstalls) Backfill(_ context.Context, _ string) ([]int64, error) {
	return []int64{42}, nil
}

type fakeProvisioner struct {
	err error
}

func (f *fakeProvisioner) Provision(_ context.Context, _, projectID string) (*service.ProvisionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.ProvisionResult{
		Repo:    service.ProvisionedRepo{Owner: "org", Name: "sis101-notas", URL: "https://github.com/org/sis101-notas", FullName: "org/sis101-notas"},
		Invited: []service.MemberInvite{{Username: "ana", Status: 201}},
		Failed:  []service.MemberInvite{},
	}, nil
}

type fakeInviter struct {
	report *service.InviteReport
	err    error
}

func (f *fakeInviter) InvitePersonal(_ context.Context, _ string) (*service.InviteReport, error) {
	return f.report, f.err
}

type fakeAccounts struct {
	appErr error
}

func (f *fakeAccounts) Overview(_ context.Context, userID string) (*service.Overview, error) {
	return &service.Overview{User: service.OverviewUser{ID: userID}}, nil
}
func (f *fakeAccounts) Repos(context.Context, string) ([]service.RepoSummary, error) {
	return nil, apperror.MissingInstitutionalLink()
}
func (f *fakeAccounts) ReposFull(context.Context, string) ([]service.RepoDetail, error) {
	return []service.RepoDetail{}, nil
}
func (f *fakeAccounts) ImportRepos(context.Context, string) (*service.ImportResult, error) {
	return &service.ImportResult{Created: []service.ImportedRepo{}, Skipped: []service.SkippedRepo{{FullName: "x/y", Reason: service.SkipExists}}}, nil
}
func (f *fakeAccounts) SyncRepos(context.Context, string) ([]service.SyncedRepo, error) {
	return []service.SyncedRepo{{ProjectID: "p1"}}, nil
}
func (f *fakeAccounts) AppInfo(context.Context) (*githubapi.AppInfo, error) {
	if f.appErr != nil {
		return nil, f.appErr
	}
	return &githubapi.AppInfo{ID: 7, Slug: "gestteam", Name: "GestTeam"}, nil
}
func (f *fakeAccounts) InstallationInfo(_ context.Context, rawID string) (*githubapi.InstallationInfo, error) {
	if rawID != "42" {
		return nil, apperror.ValidationFailed("id", "invalid installation id")
	}
	return &githubapi.InstallationInfo{ID: 42, AccountLogin: "org", AppID: 7}, nil
}

type githubFixture struct {
	router   chi.Router
	link     *fakeLink
	installs *fakeInstalls
	prov     *fakeProvisioner
	invites  *fakeInviter
	accounts *fakeAccounts
}

func newGitHubFixture(t *testing.T) *githubFixture {
	t.Helper()
	f := &githubFixture{
		link:     &fakeLink{},
		installs: &fakeInstalls{},
		prov:     &fakeProvisioner{},
		invites:  &fakeInviter{report: &service.InviteReport{Invited: []service.InviteAttempt{}, Failed: []service.InviteAttempt{}}},
		accounts: &fakeAccounts{},
	}
	h := handler.NewGitHubHandler(handler.GitHubHandlerDeps{
		Link:        f.link,
		Installs:    f.installs,
		Provision:   f.prov,
		Invites:     f.invites,
		Accounts:    f.accounts,
		Sessions:    handler.NewInstallSessionStore("0123456789abcdef0123456789abcdef", false),
		FrontendURL: frontend + "/",
		InstallURL:  "https://github.test/apps/gestteam/installations/new",
		Logger:      quietLogger(),
	})

	r := chi.NewRouter()
	r.Get("/github/oauth/callback", h.HandleOAuthCallback)
	r.Get("/github/app/install", h.HandleAppInstall)
	r.Get("/github/app/installed", h.HandleAppInstalled)
	r.Get("/github/debug/app", h.HandleDebugApp)
	r.Get("/github/debug/install/{id}", h.HandleDebugInstallation)
	r.Group(func(r chi.Router) {
		r.Use(asUser("u1"))
		r.Get("/github/oauth/start", h.HandleOAuthStart)
		r.Post("/github/project/{id}/repo", h.HandleProvisionRepo)
		r.Post("/github/me/invite-personal-on-all", h.HandleInvitePersonal("could not send invitations"))
		r.Get("/github/me/repos", h.HandleRepos)
		r.Post("/github/import/repos", h.HandleImportRepos)
		r.Post("/github/me/sync-repos", h.HandleSyncRepos)
	})
	f.router = r
	return f
}

func (f *githubFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestOAuthStart(t *testing.T) {
	f := newGitHubFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/github/oauth/start?type=PERSONAL&t=tok", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://github.test/authorize?state=s", rr.Header().Get("Location"))
	assert.Equal(t, "tok", f.link.identity)
	assert.Equal(t, model.AccountPersonal, f.link.intent)

	f.link.startErr = apperror.ValidationFailed("type", "type must be INSTITUTIONAL or PERSONAL")
	rr = f.do(httptest.NewRequest(http.MethodGet, "/github/oauth/start?type=WORK", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "validation_error", body["error"])
}

func TestOAuthStart_PrefersAuthenticatedToken(t *testing.T) {
	f := newGitHubFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/github/oauth/start?type=INSTITUTIONAL&t=stale", nil)
	req = req.WithContext(auth.WithToken(req.Context(), "bearer-tok"))
	rr := f.do(req)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "bearer-tok", f.link.identity)
	assert.Equal(t, model.AccountInstitutional, f.link.intent)
}

func TestOAuthCallback_Redirects(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		location string
	}{
		{"linked", nil, frontend + "/?linked=ok"},
		{"domain rejected", apperror.DomainNotAllowed("no institutional email"), frontend + "/?linked_error=no+institutional+email"},
		{"unexpected", errors.New("db down"), frontend + "/?linked_error=GitHub+OAuth+error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGitHubFixture(t)
			f.link.completeErr = tt.err

			rr := f.do(httptest.NewRequest(http.MethodGet, "/github/oauth/callback?code=c&state=s", nil))
			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tt.location, rr.Header().Get("Location"))
			assert.Equal(t, "c", f.link.callback.Code)
			assert.Equal(t, "s", f.link.callback.State)
		})
	}
}

func TestAppInstall_FallbackCookie(t *testing.T) {
	f := newGitHubFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/github/app/install?t=tok", nil))
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://github.test/apps/gestteam/installations/new?state=tok", rr.Header().Get("Location"))
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	// GitHub comes back without state.
	req := httptest.NewRequest(http.MethodGet, "/github/app/installed?installation_id=42", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr = f.do(req)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, frontend+"/?app_install=ok", rr.Header().Get("Location"))
	assert.Equal(t, "tok", f.installs.token)
	assert.Equal(t, "42", f.installs.rawID)

	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "fallback cookie is expired after use")
}

func TestAppInstalled_StateWinsOverCookieAndMissingBoth(t *testing.T) {
	f := newGitHubFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/github/app/installed?installation_id=42&state=fromstate", nil))
	assert.Equal(t, frontend+"/?app_install=ok", rr.Header().Get("Location"))
	assert.Equal(t, "fromstate", f.installs.token)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/github/app/installed?installation_id=42", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, frontend+"/?app_install_error=not+authenticated", rr.Header().Get("Location"))
}

func TestAppInstall_NotConfigured(t *testing.T) {
	h := handler.NewGitHubHandler(handler.GitHubHandlerDeps{
		Sessions: handler.NewInstallSessionStore("0123456789abcdef0123456789abcdef", false),
		Logger:   quietLogger(),
	})
	rr := httptest.NewRecorder()
	h.HandleAppInstall(rr, httptest.NewRequest(http.MethodGet, "/github/app/install?t=tok", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestProvisionRepo(t *testing.T) {
	f := newGitHubFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodPost, "/github/project/p1/repo", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["ok"])
	repo := body["repo"].(map[string]any)
	assert.Equal(t, "org/sis101-notas", repo["fullName"])
	assert.Len(t, body["invited"], 1)

	f.prov.err = apperror.Forbidden("only the project OWNER can create the repository")
	rr = f.do(httptest.NewRequest(http.MethodPost, "/github/project/p1/repo", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	f.prov.err = apperror.AppNotInstalled()
	rr = f.do(httptest.NewRequest(http.MethodPost, "/github/project/p1/repo", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "app_not_installed", decodeBody(t, rr)["error"])
}

func TestInvitePersonal_FailureIsOKFalse(t *testing.T) {
	f := newGitHubFixture(t)
	f.invites.err = apperror.MissingPersonalLink()

	rr := f.do(httptest.NewRequest(http.MethodPost, "/github/me/invite-personal-on-all", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "link your PERSONAL GitHub account first", body["error"])
	assert.Equal(t, []any{}, body["invited"])
	assert.Equal(t, []any{}, body["failed"])

	f.invites.err = nil
	f.invites.report = &service.InviteReport{Invited: []service.InviteAttempt{}, Failed: []service.InviteAttempt{}, Reason: "no repositories"}
	body = decodeBody(t, f.do(httptest.NewRequest(http.MethodPost, "/github/me/invite-personal-on-all", nil)))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "no repositories", body["reason"])
}

func TestAccountRoutes(t *testing.T) {
	f := newGitHubFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/github/me/repos", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "missing_institutional_link", decodeBody(t, rr)["error"])

	body := decodeBody(t, f.do(httptest.NewRequest(http.MethodPost, "/github/import/repos", nil)))
	assert.Equal(t, true, body["ok"])
	assert.Len(t, body["skipped"], 1)

	body = decodeBody(t, f.do(httptest.NewRequest(http.MethodPost, "/github/me/sync-repos", nil)))
	assert.Equal(t, float64(1), body["count"])
}

func TestDebugRoutes(t *testing.T) {
	f := newGitHubFixture(t)

	body := decodeBody(t, f.do(httptest.NewRequest(http.MethodGet, "/github/debug/app", nil)))
	assert.Equal(t, "gestteam", body["slug"])

	body = decodeBody(t, f.do(httptest.NewRequest(http.MethodGet, "/github/debug/install/42", nil)))
	assert.Equal(t, "org", body["account"])
	assert.Equal(t, float64(7), body["appId"])

	rr := f.do(httptest.NewRequest(http.MethodGet, "/github/debug/install/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	f.accounts.appErr = apperror.Provider("GET /app failed", errors.New("401 Bad credentials"))
	rr = f.do(httptest.NewRequest(http.MethodGet, "/github/debug/app", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.True(t, strings.Contains(decodeBody(t, rr)["message"].(string), "Bad credentials"))
}
