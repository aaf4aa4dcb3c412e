package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v58/github"
	"golang.org/x/oauth2"

	"github.com/Ross11547/Automatizacion/internal/cache"
)

const (
	DefaultBaseURL = "https://api.github.com/"

	perPage = 100

	// Installation tokens are valid for one hour; reuse them for less.
	installationTokenTTL = 50 * time.Minute
)

// ErrAppNotConfigured is returned by App-level calls when no App id or
// private key has been configured.
var ErrAppNotConfigured = errors.New("githubapi: GitHub App is not configured")

// AppTokenSource mints App JWTs. Satisfied by *auth.AppTokenIssuer.
type AppTokenSource interface {
	IssueAppToken() (string, error)
}

// Service is the go-github backed Client.
type Service struct {
	baseURL    *url.URL
	httpClient *http.Client
	appTokens  AppTokenSource
	instTokens *cache.Lookup[string]
}

// Options configures a Service. Zero values select GitHub.com and a pooled
// transport with a 30s timeout.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	AppTokens  AppTokenSource
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("githubapi: invalid base URL: %w", err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = defaultHTTPClient()
	}

	s := &Service{baseURL: u, httpClient: hc, appTokens: opts.AppTokens}
	s.instTokens = cache.NewLookup(installationTokenTTL, s.createInstallationToken)
	return s, nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// newClient builds a go-github client that sends token as a bearer credential
// through the shared base transport.
func (s *Service) newClient(token string) *github.Client {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	c := github.NewClient(hc)
	u := *s.baseURL
	c.BaseURL = &u
	return c
}

func (s *Service) appClient() (*github.Client, error) {
	if s.appTokens == nil {
		return nil, ErrAppNotConfigured
	}
	jwt, err := s.appTokens.IssueAppToken()
	if err != nil {
		return nil, err
	}
	return s.newClient(jwt), nil
}

// ForToken returns a Session acting with an OAuth access token.
func (s *Service) ForToken(token string) Session {
	return &session{gh: s.newClient(token)}
}

// ForInstallation exchanges the App JWT for an installation token and returns
// a Session acting inside that installation. Tokens are cached per installation.
func (s *Service) ForInstallation(ctx context.Context, installationID int64) (Session, error) {
	tok, err := s.instTokens.Get(ctx, strconv.FormatInt(installationID, 10))
	if err != nil {
		return nil, err
	}
	return &session{gh: s.newClient(tok)}, nil
}

func (s *Service) createInstallationToken(ctx context.Context, key string) (string, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return "", fmt.Errorf("githubapi: invalid installation id %q", key)
	}
	c, err := s.appClient()
	if err != nil {
		return "", err
	}
	tok, _, err := c.Apps.CreateInstallationToken(ctx, id, nil)
	if err != nil {
		return "", wrap("creating installation token", err)
	}
	return tok.GetToken(), nil
}

// Installation fetches GET /app/installations/{id}.
func (s *Service) Installation(ctx context.Context, installationID int64) (*InstallationInfo, error) {
	c, err := s.appClient()
	if err != nil {
		return nil, err
	}
	inst, _, err := c.Apps.GetInstallation(ctx, installationID)
	if err != nil {
		return nil, wrap("fetching installation", err)
	}
	acct := inst.GetAccount()
	return &InstallationInfo{
		ID:           inst.GetID(),
		AccountLogin: acct.GetLogin(),
		AccountID:    acct.GetID(),
		AccountType:  acct.GetType(),
		AppID:        inst.GetAppID(),
	}, nil
}

// App fetches GET /app.
func (s *Service) App(ctx context.Context) (*AppInfo, error) {
	c, err := s.appClient()
	if err != nil {
		return nil, err
	}
	app, _, err := c.Apps.Get(ctx, "")
	if err != nil {
		return nil, wrap("fetching app", err)
	}
	return &AppInfo{ID: app.GetID(), Slug: app.GetSlug(), Name: app.GetName()}, nil
}

// session implements Session over one go-github client.
type session struct {
	gh *github.Client
}

func (s *session) AuthenticatedUser(ctx context.Context) (*Account, error) {
	u, _, err := s.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, wrap("fetching user", err)
	}
	return &Account{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		AvatarURL: u.GetAvatarURL(),
		Email:     u.GetEmail(),
	}, nil
}

func (s *session) ListEmails(ctx context.Context) ([]Email, error) {
	list, _, err := s.gh.Users.ListEmails(ctx, &github.ListOptions{PerPage: perPage})
	if err != nil {
		return nil, wrap("listing emails", err)
	}
	out := make([]Email, 0, len(list))
	for _, e := range list {
		out = append(out, Email{
			Address:  strings.TrimSpace(e.GetEmail()),
			Primary:  e.GetPrimary(),
			Verified: e.GetVerified(),
		})
	}
	return out, nil
}

func (s *session) CreateUserRepo(ctx context.Context, r NewRepo) (*Repo, error) {
	return s.create(ctx, "", r)
}

func (s *session) CreateOrgRepo(ctx context.Context, org string, r NewRepo) (*Repo, error) {
	if org == "" {
		return nil, errors.New("githubapi: organization is required")
	}
	return s.create(ctx, org, r)
}

func (s *session) create(ctx context.Context, org string, r NewRepo) (*Repo, error) {
	req := &github.Repository{
		Name:     github.String(r.Name),
		Private:  github.Bool(r.Private),
		AutoInit: github.Bool(r.AutoInit),
	}
	if org != "" {
		req.HasIssues = github.Bool(r.HasIssues)
		req.HasProjects = github.Bool(r.HasProjects)
		req.HasWiki = github.Bool(r.HasWiki)
	}
	created, _, err := s.gh.Repositories.Create(ctx, org, req)
	if err != nil {
		return nil, wrap("creating repository", err)
	}
	return toRepo(created), nil
}

func (s *session) AddCollaborator(ctx context.Context, owner, repo, username, permission string) (int, error) {
	_, resp, err := s.gh.Repositories.AddCollaborator(ctx, owner, repo, username,
		&github.RepositoryAddCollaboratorOptions{Permission: permission})
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	// go-github reports 202 as *AcceptedError; for this endpoint it means the
	// invitation awaits organization approval.
	var accepted *github.AcceptedError
	if errors.As(err, &accepted) {
		return http.StatusAccepted, nil
	}
	if err != nil {
		return status, wrap("adding collaborator", err)
	}
	return status, nil
}

func (s *session) ListOwnedRepos(ctx context.Context, affiliation, sort string) ([]Repo, error) {
	opts := &github.RepositoryListOptions{
		Affiliation: affiliation,
		Sort:        sort,
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	var out []Repo
	for {
		page, resp, err := s.gh.Repositories.List(ctx, "", opts)
		if err != nil {
			return nil, wrap("listing repositories", err)
		}
		for _, r := range page {
			out = append(out, *toRepo(r))
		}
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

func (s *session) ListCollaborators(ctx context.Context, owner, repo string) ([]Collaborator, error) {
	users, _, err := s.gh.Repositories.ListCollaborators(ctx, owner, repo,
		&github.ListCollaboratorsOptions{ListOptions: github.ListOptions{PerPage: perPage}})
	if err != nil {
		return nil, wrap("listing collaborators", err)
	}
	out := make([]Collaborator, 0, len(users))
	for _, u := range users {
		out = append(out, Collaborator{Login: u.GetLogin(), SiteAdmin: u.GetSiteAdmin()})
	}
	return out, nil
}

func toRepo(r *github.Repository) *Repo {
	owner := r.GetOwner()
	return &Repo{
		Name:      r.GetName(),
		FullName:  r.GetFullName(),
		Owner:     owner.GetLogin(),
		OwnerType: owner.GetType(),
		HTMLURL:   r.GetHTMLURL(),
		Private:   r.GetPrivate(),
	}
}
