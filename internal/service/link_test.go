package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/metrics"
	"github.com/Ross11547/Automatizacion/internal/model"
)

type fakeProvider struct {
	token    string
	exchange int
}

func (p *fakeProvider) AuthURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	p.exchange++
	if code == "" {
		return nil, errors.New("auth: missing OAuth code")
	}
	tok := &oauth2.Token{AccessToken: p.token, TokenType: "bearer"}
	return tok.WithExtra(map[string]any{"scope": "read:user,user:email,repo"}), nil
}

type linkFixture struct {
	svc      *LinkService
	tokens   *auth.TokenService
	provider *fakeProvider
	gh       *fakeGitHub
	creds    *fakeCreds
	metrics  *metrics.Metrics
	session  string
}

func newLinkFixture(t *testing.T, requireVerified bool) *linkFixture {
	t.Helper()
	tokens := newTestTokens(t)
	users := newFakeUsers(&model.User{ID: "u1", Email: "ana@unifranz.edu.bo"})
	creds := newFakeCreds()
	projects := newFakeProjects()
	memberships := &fakeMemberships{projects: projects}
	installs := &fakeInstallations{}
	gh := newFakeGitHub()
	gh.account = &githubapi.Account{ID: 99, Login: "ana-gh", AvatarURL: "https://avatars/99"}
	m := metrics.New("test")
	provider := &fakeProvider{token: "gho_first"}

	inviter := NewInviteService(creds, memberships, installs, gh, m, discardLogger())
	svc := NewLinkService(LinkServiceDeps{
		States:     tokens,
		Provider:   provider,
		GitHub:     gh,
		Users:      users,
		Creds:      creds,
		Inviter:    inviter,
		Dispatcher: InlineDispatcher{Logger: discardLogger(), Metrics: m},
		Policy:     EmailPolicy{Domain: "domain.edu", RequireVerified: requireVerified},
		Metrics:    m,
		Logger:     discardLogger(),
	})

	session, err := tokens.IssueSessionToken("u1")
	require.NoError(t, err)

	return &linkFixture{svc: svc, tokens: tokens, provider: provider, gh: gh, creds: creds, metrics: m, session: session}
}

func (f *linkFixture) state(t *testing.T, intent model.AccountType) string {
	t.Helper()
	st, err := f.tokens.EncodeLinkState(auth.LinkState{Identity: f.session, Intent: intent})
	require.NoError(t, err)
	return st
}

func TestLinkService_StartURL(t *testing.T) {
	f := newLinkFixture(t, true)

	u, err := f.svc.StartURL(f.session, model.AccountPersonal)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://github.com/login/oauth/authorize?state="))

	state := strings.TrimPrefix(u, "https://github.com/login/oauth/authorize?state=")
	st, err := f.tokens.DecodeLinkState(state)
	require.NoError(t, err)
	assert.Equal(t, "u1", st.UserID)
	assert.Equal(t, model.AccountPersonal, st.Intent)

	_, err = f.svc.StartURL(f.session, "WORK")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestLinkService_DoubleLinkKeepsOneCredential(t *testing.T) {
	f := newLinkFixture(t, false)
	ctx := context.Background()

	first, err := f.svc.Complete(ctx, Callback{Code: "c1", State: f.state(t, model.AccountPersonal)})
	require.NoError(t, err)

	f.provider.token = "gho_second"
	f.gh.account = &githubapi.Account{ID: 100, Login: "ana-other"}
	second, err := f.svc.Complete(ctx, Callback{Code: "c2", State: f.state(t, model.AccountPersonal)})
	require.NoError(t, err)

	assert.Equal(t, 1, f.creds.count())
	assert.Equal(t, first.ID, second.ID)

	stored, err := f.creds.Get(ctx, "u1", model.AccountPersonal)
	require.NoError(t, err)
	assert.Equal(t, "ana-other", stored.Login)
	assert.Equal(t, int64(100), stored.GitHubID)
	assert.Equal(t, "gho_second", stored.AccessToken)
	assert.Equal(t, "bearer", stored.TokenType)
	assert.Equal(t, "read:user,user:email,repo", stored.Scopes)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.GitHubLinks.WithLabelValues("PERSONAL", metrics.OutcomeSuccess)))
}

func TestLinkService_InstitutionalGate(t *testing.T) {
	unverified := []githubapi.Email{{Address: "ana@domain.edu", Verified: false, Primary: true}}

	t.Run("unverified domain email rejected when verification is required", func(t *testing.T) {
		f := newLinkFixture(t, true)
		f.gh.emails = unverified

		_, err := f.svc.Complete(context.Background(), Callback{Code: "c", State: f.state(t, model.AccountInstitutional)})
		require.True(t, errors.Is(err, apperror.ErrDomainNotAllowed), "got %v", err)
		assert.Contains(t, err.Error(), "VERIFIED @domain.edu")
		assert.Equal(t, 0, f.creds.count())
	})

	t.Run("verified domain email accepted", func(t *testing.T) {
		f := newLinkFixture(t, true)
		f.gh.emails = []githubapi.Email{
			{Address: "ana@gmail.com", Verified: true, Primary: true},
			{Address: "ana@domain.edu", Verified: true},
		}

		cred, err := f.svc.Complete(context.Background(), Callback{Code: "c", State: f.state(t, model.AccountInstitutional)})
		require.NoError(t, err)
		assert.Equal(t, "ana@domain.edu", cred.Email)
	})

	t.Run("unverified domain email accepted when verification is off", func(t *testing.T) {
		f := newLinkFixture(t, false)
		f.gh.emails = unverified

		_, err := f.svc.Complete(context.Background(), Callback{Code: "c", State: f.state(t, model.AccountInstitutional)})
		assert.NoError(t, err)
	})

	t.Run("personal slot is never gated", func(t *testing.T) {
		f := newLinkFixture(t, true)
		f.gh.emails = []githubapi.Email{{Address: "ana@gmail.com", Primary: true}}

		_, err := f.svc.Complete(context.Background(), Callback{Code: "c", State: f.state(t, model.AccountPersonal)})
		assert.NoError(t, err)
	})
}

func TestLinkService_FallsBackToProfileEmail(t *testing.T) {
	f := newLinkFixture(t, false)
	f.gh.emailsErr = errors.New("GET /user/emails: 403")
	f.gh.account.Email = "ana@domain.edu"

	cred, err := f.svc.Complete(context.Background(), Callback{Code: "c", State: f.state(t, model.AccountInstitutional)})
	require.NoError(t, err)
	assert.Equal(t, "ana@domain.edu", cred.Email)
}

func TestLinkService_Denials(t *testing.T) {
	f := newLinkFixture(t, true)
	expired, err := f.tokens.GenerateWithDuration("u1", -time.Minute)
	require.NoError(t, err)
	expiredState, err := f.tokens.EncodeLinkState(auth.LinkState{Identity: expired, Intent: model.AccountPersonal})
	require.NoError(t, err)
	ghostSession, err := f.tokens.IssueSessionToken("ghost")
	require.NoError(t, err)
	ghostState, err := f.tokens.EncodeLinkState(auth.LinkState{Identity: ghostSession, Intent: model.AccountPersonal})
	require.NoError(t, err)

	tests := []struct {
		name string
		cb   Callback
		msg  string
	}{
		{"user denied", Callback{Error: "access_denied", ErrorDescription: "The user has denied your application access."}, "denied"},
		{"garbage state", Callback{Code: "c", State: "not-a-token"}, "no authenticated user"},
		{"expired identity", Callback{Code: "c", State: expiredState}, "no authenticated user"},
		{"unknown user", Callback{Code: "c", State: ghostState}, "no authenticated user"},
		{"invalid type", Callback{Code: "c", State: f.state(t, "WORK")}, "invalid link type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Complete(context.Background(), tt.cb)
			require.True(t, errors.Is(err, apperror.ErrLinkDenied), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
	assert.Equal(t, 0, f.provider.exchange, "no code exchange for a rejected callback")
	assert.Equal(t, 0, f.creds.count())
}

func TestLinkService_PostLinkInvitesPersonalAccount(t *testing.T) {
	f := newLinkFixture(t, false)
	ctx := context.Background()

	// Give u1 a project with a repository and an installation on its owner.
	projects := newFakeProjects(&model.Project{ID: "p1", RepoURL: "https://github.com/acme/widgets"})
	memberships := &fakeMemberships{projects: projects}
	require.NoError(t, memberships.Add(ctx, &model.Membership{ProjectID: "p1", UserID: "u1", Role: model.MemberRoleMember}))
	installs := &fakeInstallations{}
	require.NoError(t, installs.Upsert(ctx, &model.Installation{UserID: "u1", InstallationID: 7, AccountLogin: "acme"}))
	f.svc.inviter = NewInviteService(f.creds, memberships, installs, f.gh, f.metrics, discardLogger())

	_, err := f.svc.Complete(ctx, Callback{Code: "c", State: f.state(t, model.AccountPersonal)})
	require.NoError(t, err)

	assert.Equal(t, []string{"inst:7 acme/widgets"}, f.gh.invites)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BackgroundTasks.WithLabelValues(InviteTaskName, metrics.OutcomeSuccess)))
}
