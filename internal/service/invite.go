package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/metrics"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// Credential used for an invitation.
const (
	ViaApp   = "app"
	ViaOAuth = "oauth"
)

const collaboratorPermission = "push"

var repoURLPattern = regexp.MustCompile(`(?i)github\.com/([^/]+)/([^/]+?)(?:\.git|/)?$`)

// ParseRepoURL extracts owner and repository from a GitHub URL such as
// https://github.com/acme/widgets.git.
func ParseRepoURL(url string) (owner, repo string, ok bool) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// InviteAttempt is the outcome of inviting one account to one repository.
type InviteAttempt struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Username string `json:"username"`
	Via      string `json:"via,omitempty"`
	Status   int    `json:"status,omitempty"`
	Msg      string `json:"msg"`
	// Pending is set when GitHub answered 202: the invitation waits for an
	// organization owner's approval.
	Pending bool `json:"pending,omitempty"`
}

// InviteReport lists every attempt of a batch. Reason explains an empty
// batch.
type InviteReport struct {
	Invited []InviteAttempt `json:"invited"`
	Failed  []InviteAttempt `json:"failed"`
	Reason  string          `json:"reason,omitempty"`
}

const reasonNoRepos = "no repositories yet (empty repoUrl). Create the repository first."

// InviteService adds a user's PERSONAL GitHub account as a collaborator on
// the repositories of every project the user belongs to.
type InviteService struct {
	creds         repository.CredentialRepository
	memberships   repository.MembershipRepository
	installations repository.InstallationRepository
	github        githubapi.Client
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewInviteService(
	creds repository.CredentialRepository,
	memberships repository.MembershipRepository,
	installations repository.InstallationRepository,
	gh githubapi.Client,
	m *metrics.Metrics,
	logger *slog.Logger,
) *InviteService {
	return &InviteService{
		creds:         creds,
		memberships:   memberships,
		installations: installations,
		github:        gh,
		metrics:       m,
		logger:        logger,
	}
}

type repoRef struct{ owner, name string }

// InvitePersonal invites the user's PERSONAL login with push permission.
//
// For each repository the App installation token is tried first when one of
// the user's installations lives on the repository owner; the INSTITUTIONAL
// OAuth token is the fallback. Per-repository failures end up in
// InviteReport.Failed and never fail the batch.
func (s *InviteService) InvitePersonal(ctx context.Context, userID string) (*InviteReport, error) {
	personal, err := s.optionalCredential(ctx, userID, model.AccountPersonal)
	if err != nil {
		return nil, err
	}
	if personal == nil || personal.Login == "" {
		return nil, apperror.MissingPersonalLink()
	}

	repos, err := s.memberRepos(ctx, userID)
	if err != nil {
		return nil, err
	}
	report := &InviteReport{Invited: []InviteAttempt{}, Failed: []InviteAttempt{}}
	if len(repos) == 0 {
		report.Reason = reasonNoRepos
		return report, nil
	}

	institutional, err := s.optionalCredential(ctx, userID, model.AccountInstitutional)
	if err != nil {
		return nil, err
	}
	installs, err := s.installations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/invite: listing installations: %w", err)
	}

	for _, r := range repos {
		a, ok := s.inviteOne(ctx, r, personal.Login, installationFor(installs, r.owner), institutional)
		if ok {
			report.Invited = append(report.Invited, a)
		} else {
			report.Failed = append(report.Failed, a)
		}
	}

	s.logger.Info("personal account invitations processed",
		slog.String("userID", userID),
		slog.String("login", personal.Login),
		slog.Int("invited", len(report.Invited)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *InviteService) inviteOne(
	ctx context.Context,
	r repoRef,
	username string,
	inst *model.Installation,
	institutional *model.Credential,
) (InviteAttempt, bool) {
	a := InviteAttempt{Owner: r.owner, Repo: r.name, Username: username}
	var problems []string

	if inst != nil {
		status, err := s.addWithInstallation(ctx, inst.InstallationID, r, username)
		ok := err == nil && githubapi.InviteAccepted(status)
		s.metrics.RecordInvitation(ViaApp, ok, githubapi.InvitePending(status))
		if ok {
			return accepted(a, ViaApp, status), true
		}
		a.Via = ViaApp
		a.Status = status
		problems = append(problems, "app error: "+describeInvite(status, err))
	}

	if institutional != nil && institutional.AccessToken != "" {
		status, err := s.github.ForToken(institutional.AccessToken).
			AddCollaborator(ctx, r.owner, r.name, username, collaboratorPermission)
		ok := err == nil && githubapi.InviteAccepted(status)
		s.metrics.RecordInvitation(ViaOAuth, ok, githubapi.InvitePending(status))
		if ok {
			return accepted(a, ViaOAuth, status), true
		}
		a.Via = ViaOAuth
		a.Status = status
		problems = append(problems, "oauth error: "+describeInvite(status, err))
	}

	if len(problems) == 0 {
		problems = append(problems, "no credential can invite on "+r.owner)
	}
	a.Msg = strings.Join(problems, " | ")
	return a, false
}

func (s *InviteService) addWithInstallation(ctx context.Context, installationID int64, r repoRef, username string) (int, error) {
	sess, err := s.github.ForInstallation(ctx, installationID)
	if err != nil {
		return 0, err
	}
	return sess.AddCollaborator(ctx, r.owner, r.name, username, collaboratorPermission)
}

func accepted(a InviteAttempt, via string, status int) InviteAttempt {
	a.Via = via
	a.Status = status
	a.Msg = fmt.Sprintf("status=%d", status)
	a.Pending = githubapi.InvitePending(status)
	return a
}

func describeInvite(status int, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("status=%d", status)
}

// memberRepos returns the distinct repositories of the user's projects.
func (s *InviteService) memberRepos(ctx context.Context, userID string) ([]repoRef, error) {
	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/invite: listing memberships: %w", err)
	}

	seen := make(map[string]bool)
	var repos []repoRef
	for _, m := range memberships {
		owner, name, ok := ParseRepoURL(m.Project.RepoURL)
		if !ok {
			continue
		}
		key := strings.ToLower(owner + "/" + name)
		if seen[key] {
			continue
		}
		seen[key] = true
		repos = append(repos, repoRef{owner: owner, name: name})
	}
	return repos, nil
}

func (s *InviteService) optionalCredential(ctx context.Context, userID string, t model.AccountType) (*model.Credential, error) {
	c, err := s.creds.Get(ctx, userID, t)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/invite: reading %s credential: %w", t, err)
	}
	return c, nil
}

// installationFor returns the installation whose account is owner.
func installationFor(installs []model.Installation, owner string) *model.Installation {
	for i := range installs {
		if installs[i].AccountLogin != "" && strings.EqualFold(installs[i].AccountLogin, owner) {
			return &installs[i]
		}
	}
	return nil
}
