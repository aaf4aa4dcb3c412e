package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/metrics"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// RepositoryCreationStrategy creates a project repository on one kind of
// GitHub account. The strategy is chosen once per provisioning from the
// installation's account type.
type RepositoryCreationStrategy interface {
	Name() string
	Create(ctx context.Context, name string) (*githubapi.Repo, error)
}

// orgRepoStrategy creates the repository inside the organization the App is
// installed on, authenticated as the installation.
type orgRepoStrategy struct {
	org     string
	session githubapi.Session
}

func (s orgRepoStrategy) Name() string { return "org" }

func (s orgRepoStrategy) Create(ctx context.Context, name string) (*githubapi.Repo, error) {
	return s.session.CreateOrgRepo(ctx, s.org, githubapi.NewRepo{
		Name:        name,
		Private:     true,
		AutoInit:    true,
		HasIssues:   true,
		HasProjects: true,
		HasWiki:     false,
	})
}

// userRepoStrategy creates the repository on the caller's own account through
// the INSTITUTIONAL OAuth token. Installation tokens cannot create repositories
// on user accounts.
type userRepoStrategy struct {
	session githubapi.Session
}

func (s userRepoStrategy) Name() string { return "user" }

func (s userRepoStrategy) Create(ctx context.Context, name string) (*githubapi.Repo, error) {
	return s.session.CreateUserRepo(ctx, githubapi.NewRepo{
		Name:     name,
		Private:  true,
		AutoInit: true,
	})
}

// ProvisionedRepo identifies the created repository.
type ProvisionedRepo struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	FullName string `json:"fullName"`
}

type MemberInvite struct {
	Username string `json:"username"`
	Status   int    `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ProvisionResult struct {
	Repo    ProvisionedRepo `json:"repo"`
	Invited []MemberInvite  `json:"invited"`
	Failed  []MemberInvite  `json:"failed"`
}

// ProvisionService creates the GitHub repository of a project and invites its
// members.
type ProvisionService struct {
	projects      repository.ProjectRepository
	memberships   repository.MembershipRepository
	installations repository.InstallationRepository
	creds         repository.CredentialRepository
	github        githubapi.Client
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewProvisionService(
	projects repository.ProjectRepository,
	memberships repository.MembershipRepository,
	installations repository.InstallationRepository,
	creds repository.CredentialRepository,
	gh githubapi.Client,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ProvisionService {
	return &ProvisionService{
		projects:      projects,
		memberships:   memberships,
		installations: installations,
		creds:         creds,
		github:        gh,
		metrics:       m,
		logger:        logger,
	}
}

// Provision creates a private repository for projectID on behalf of userID.
//
// The project must exist, userID must be its OWNER, the user must have
// installed the App and the project must not have a repository yet. All four
// checks run before any GitHub call.
func (s *ProvisionService) Provision(ctx context.Context, userID, projectID string) (*ProvisionResult, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	m, err := s.memberships.Get(ctx, projectID, userID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/provision: reading membership: %w", err)
	}
	if m == nil || m.Role != model.MemberRoleOwner {
		return nil, apperror.Forbidden("only the project OWNER can create the repository")
	}

	inst, err := s.installations.FirstForUser(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.AppNotInstalled()
	}
	if err != nil {
		return nil, fmt.Errorf("service/provision: reading installation: %w", err)
	}

	if project.RepoURL != "" {
		return nil, apperror.Conflict("the project already has a repository")
	}

	info, err := s.github.Installation(ctx, inst.InstallationID)
	if err != nil {
		return nil, apperror.Provider("could not read the GitHub App installation", err)
	}
	instSession, err := s.github.ForInstallation(ctx, inst.InstallationID)
	if err != nil {
		return nil, apperror.Provider("could not obtain an installation token", err)
	}

	strategy, err := s.strategyFor(ctx, userID, info, instSession)
	if err != nil {
		return nil, err
	}

	name := RepoName(project.SubjectCode, project.Title, project.ID)
	created, err := strategy.Create(ctx, name)
	s.metrics.RecordProvision(strategy.Name(), err == nil)
	if err != nil {
		return nil, apperror.Provider("could not create the repository", err)
	}

	stored, err := s.projects.SetRepoURL(ctx, project.ID, created.HTMLURL)
	if err != nil {
		return nil, fmt.Errorf("service/provision: saving repo url: %w", err)
	}
	if !stored {
		return nil, apperror.Conflict("the project already has a repository")
	}

	owner := created.Owner
	if owner == "" {
		owner = info.AccountLogin
	}
	if created.Name != "" {
		name = created.Name
	}

	s.logger.Info("project repository created",
		slog.String("projectID", project.ID),
		slog.String("repo", owner+"/"+name),
		slog.String("strategy", strategy.Name()),
	)

	result := &ProvisionResult{
		Repo:    ProvisionedRepo{Owner: owner, Name: name, URL: created.HTMLURL, FullName: owner + "/" + name},
		Invited: []MemberInvite{},
		Failed:  []MemberInvite{},
	}
	if err := s.inviteMembers(ctx, project.ID, instSession, owner, name, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ProvisionService) strategyFor(
	ctx context.Context,
	userID string,
	info *githubapi.InstallationInfo,
	instSession githubapi.Session,
) (RepositoryCreationStrategy, error) {
	if info.AccountType == model.OwnerTypeOrganization {
		return orgRepoStrategy{org: info.AccountLogin, session: instSession}, nil
	}

	cred, err := s.creds.Get(ctx, userID, model.AccountInstitutional)
	if errors.Is(err, apperror.ErrNotFound) || (err == nil && cred.AccessToken == "") {
		return nil, apperror.MissingInstitutionalLink()
	}
	if err != nil {
		return nil, fmt.Errorf("service/provision: reading institutional credential: %w", err)
	}
	return userRepoStrategy{session: s.github.ForToken(cred.AccessToken)}, nil
}

// inviteMembers invites the PERSONAL login of every member that has one.
// Failures are recorded, never returned.
func (s *ProvisionService) inviteMembers(
	ctx context.Context,
	projectID string,
	sess githubapi.Session,
	owner, repo string,
	result *ProvisionResult,
) error {
	members, err := s.memberships.ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("service/provision: listing members: %w", err)
	}

	for _, m := range members {
		cred, err := s.creds.Get(ctx, m.UserID, model.AccountPersonal)
		if err != nil || cred.Login == "" {
			continue
		}

		status, err := sess.AddCollaborator(ctx, owner, repo, cred.Login, collaboratorPermission)
		ok := err == nil && githubapi.InviteAccepted(status)
		s.metrics.RecordInvitation(ViaApp, ok, githubapi.InvitePending(status))

		switch {
		case ok:
			result.Invited = append(result.Invited, MemberInvite{Username: cred.Login, Status: status})
		case err != nil:
			result.Failed = append(result.Failed, MemberInvite{Username: cred.Login, Status: status, Error: err.Error()})
		default:
			result.Failed = append(result.Failed, MemberInvite{Username: cred.Login, Status: status})
		}
	}
	return nil
}
