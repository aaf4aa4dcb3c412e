package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// AccountService reads and synchronizes what a user has on GitHub.
type AccountService struct {
	users         repository.UserRepository
	creds         repository.CredentialRepository
	installations repository.InstallationRepository
	projects      repository.ProjectRepository
	memberships   repository.MembershipRepository
	github        githubapi.Client
	logger        *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	creds repository.CredentialRepository,
	installations repository.InstallationRepository,
	projects repository.ProjectRepository,
	memberships repository.MembershipRepository,
	gh githubapi.Client,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:         users,
		creds:         creds,
		installations: installations,
		projects:      projects,
		memberships:   memberships,
		github:        gh,
		logger:        logger,
	}
}

type OverviewUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type LinkedAccount struct {
	AccountType model.AccountType `json:"tipoCuenta"`
	Login       string            `json:"login"`
	Email       string            `json:"correo"`
}

type AppInstallation struct {
	InstallationID int64  `json:"installationId"`
	AccountLogin   string `json:"accountLogin"`
}

type OverviewProject struct {
	ProjectID   string           `json:"proyectoId"`
	Title       string           `json:"titulo"`
	SubjectCode string           `json:"codigoMateria"`
	GroupType   model.GroupType  `json:"tipoGrupo"`
	Role        model.MemberRole `json:"rol"`
	RepoURL     string           `json:"repoUrl"`
}

type Overview struct {
	User             OverviewUser      `json:"user"`
	LinkedGitHub     []LinkedAccount   `json:"linkedGithub"`
	AppInstallations []AppInstallation `json:"appInstallations"`
	Projects         []OverviewProject `json:"projects"`
}

// Overview gathers the user's links, installations and projects.
func (s *AccountService) Overview(ctx context.Context, userID string) (*Overview, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	creds, err := s.creds.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing credentials: %w", err)
	}
	installs, err := s.installations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing installations: %w", err)
	}
	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/account: listing memberships: %w", err)
	}

	out := &Overview{
		User:             OverviewUser{ID: user.ID, Email: user.Email, Name: user.FullName()},
		LinkedGitHub:     make([]LinkedAccount, 0, len(creds)),
		AppInstallations: make([]AppInstallation, 0, len(installs)),
		Projects:         make([]OverviewProject, 0, len(memberships)),
	}
	for _, c := range creds {
		out.LinkedGitHub = append(out.LinkedGitHub, LinkedAccount{AccountType: c.AccountType, Login: c.Login, Email: c.Email})
	}
	for _, i := range installs {
		out.AppInstallations = append(out.AppInstallations, AppInstallation{InstallationID: i.InstallationID, AccountLogin: i.AccountLogin})
	}
	for _, m := range memberships {
		out.Projects = append(out.Projects, OverviewProject{
			ProjectID:   m.ProjectID,
			Title:       m.Project.Title,
			SubjectCode: m.Project.SubjectCode,
			GroupType:   m.Project.GroupType,
			Role:        m.Role,
			RepoURL:     m.Project.RepoURL,
		})
	}
	return out, nil
}

type RepoSummary struct {
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
	URL      string `json:"url"`
}

// Repos lists every repository visible to the INSTITUTIONAL account.
func (s *AccountService) Repos(ctx context.Context, userID string) ([]RepoSummary, error) {
	sess, _, err := s.institutionalSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	repos, err := sess.ListOwnedRepos(ctx, "", "")
	if err != nil {
		return nil, apperror.Provider("could not list repositories", err)
	}

	out := make([]RepoSummary, 0, len(repos))
	for _, r := range repos {
		out = append(out, RepoSummary{FullName: r.FullName, Private: r.Private, URL: r.HTMLURL})
	}
	return out, nil
}

type RepoCollaborator struct {
	Login     string `json:"login"`
	SiteAdmin bool   `json:"site_admin"`
}

type RepoDetail struct {
	FullName      string             `json:"full_name"`
	Name          string             `json:"name"`
	Owner         string             `json:"owner"`
	Private       bool               `json:"private"`
	URL           string             `json:"url"`
	IsOrg         bool               `json:"is_org"`
	Collaborators []RepoCollaborator `json:"collaborators"`
	GroupType     model.GroupType    `json:"tipoGrupo"`
}

// ReposFull lists the repositories owned by the INSTITUTIONAL login with
// their collaborators. A repository is a GROUP one when it belongs to an
// organization or has more than one collaborator.
func (s *AccountService) ReposFull(ctx context.Context, userID string) ([]RepoDetail, error) {
	sess, cred, err := s.institutionalSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	repos, err := sess.ListOwnedRepos(ctx, "owner", "")
	if err != nil {
		return nil, apperror.Provider("could not list repositories", err)
	}

	out := []RepoDetail{}
	for _, r := range repos {
		if !strings.EqualFold(r.Owner, cred.Login) {
			continue
		}

		collaborators := []RepoCollaborator{}
		cols, err := sess.ListCollaborators(ctx, r.Owner, r.Name)
		if err != nil {
			// Needs admin rights on the repository.
			s.logger.Debug("listing collaborators failed", slog.String("repo", r.FullName), slog.String("error", err.Error()))
		}
		for _, c := range cols {
			collaborators = append(collaborators, RepoCollaborator{Login: c.Login, SiteAdmin: c.SiteAdmin})
		}

		isOrg := r.OwnerType == model.OwnerTypeOrganization
		group := model.GroupTypeIndividual
		if isOrg || len(collaborators) > 1 {
			group = model.GroupTypeGroup
		}
		out = append(out, RepoDetail{
			FullName:      r.FullName,
			Name:          r.Name,
			Owner:         r.Owner,
			Private:       r.Private,
			URL:           r.HTMLURL,
			IsOrg:         isOrg,
			Collaborators: collaborators,
			GroupType:     group,
		})
	}
	return out, nil
}

// Skip reasons of ImportRepos.
const (
	SkipNotOwner = "no-owner"
	SkipExists   = "exists"
)

type ImportedRepo struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
	URL      string `json:"url"`
}

type SkippedRepo struct {
	FullName string `json:"full_name"`
	Reason   string `json:"reason"`
}

type ImportResult struct {
	Created []ImportedRepo `json:"created"`
	Skipped []SkippedRepo  `json:"skipped"`
}

// ImportRepos creates a GROUP project, owned by the user, for every
// repository of the INSTITUTIONAL login that no project points to yet.
func (s *AccountService) ImportRepos(ctx context.Context, userID string) (*ImportResult, error) {
	sess, cred, err := s.institutionalSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	repos, err := sess.ListOwnedRepos(ctx, "owner", "")
	if err != nil {
		return nil, apperror.Provider("could not list repositories", err)
	}

	res := &ImportResult{Created: []ImportedRepo{}, Skipped: []SkippedRepo{}}
	for _, r := range repos {
		if !strings.EqualFold(r.Owner, cred.Login) {
			res.Skipped = append(res.Skipped, SkippedRepo{FullName: r.FullName, Reason: SkipNotOwner})
			continue
		}
		_, err := s.projects.GetByRepoURL(ctx, r.HTMLURL)
		if err == nil {
			res.Skipped = append(res.Skipped, SkippedRepo{FullName: r.FullName, Reason: SkipExists})
			continue
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/account: looking up %s: %w", r.HTMLURL, err)
		}

		p, err := s.createOwned(ctx, userID, r)
		if err != nil {
			return nil, err
		}
		res.Created = append(res.Created, ImportedRepo{ID: p.ID, FullName: r.FullName, Private: r.Private, URL: r.HTMLURL})
	}
	return res, nil
}

type SyncedRepo struct {
	ProjectID string `json:"proyectoId"`
	RepoURL   string `json:"repoUrl"`
	Private   bool   `json:"private"`
	FullName  string `json:"full_name"`
}

// SyncRepos upserts a project per owned repository, refreshing titles, and
// makes the user OWNER of each.
func (s *AccountService) SyncRepos(ctx context.Context, userID string) ([]SyncedRepo, error) {
	sess, cred, err := s.institutionalSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	repos, err := sess.ListOwnedRepos(ctx, "owner", "updated")
	if err != nil {
		return nil, apperror.Provider("could not list repositories", err)
	}

	saved := []SyncedRepo{}
	for _, r := range repos {
		if !strings.EqualFold(r.Owner, cred.Login) {
			continue
		}

		p, err := s.projects.GetByRepoURL(ctx, r.HTMLURL)
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			if p, err = s.createOwned(ctx, userID, r); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, fmt.Errorf("service/account: looking up %s: %w", r.HTMLURL, err)
		default:
			if p.Title != r.Name {
				if err := s.projects.UpdateTitle(ctx, p.ID, r.Name); err != nil {
					return nil, fmt.Errorf("service/account: renaming project %s: %w", p.ID, err)
				}
			}
			owner := &model.Membership{ProjectID: p.ID, UserID: userID, Role: model.MemberRoleOwner}
			if err := s.memberships.Upsert(ctx, owner); err != nil {
				return nil, fmt.Errorf("service/account: adding owner to %s: %w", p.ID, err)
			}
		}

		saved = append(saved, SyncedRepo{ProjectID: p.ID, RepoURL: r.HTMLURL, Private: r.Private, FullName: r.FullName})
	}
	return saved, nil
}

func (s *AccountService) createOwned(ctx context.Context, userID string, r githubapi.Repo) (*model.Project, error) {
	p := &model.Project{Title: r.Name, GroupType: model.GroupTypeGroup, RepoURL: r.HTMLURL}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("service/account: creating project for %s: %w", r.FullName, err)
	}
	owner := &model.Membership{ProjectID: p.ID, UserID: userID, Role: model.MemberRoleOwner}
	if err := s.memberships.Upsert(ctx, owner); err != nil {
		return nil, fmt.Errorf("service/account: adding owner to %s: %w", p.ID, err)
	}
	return p, nil
}

func (s *AccountService) institutionalSession(ctx context.Context, userID string) (githubapi.Session, *model.Credential, error) {
	cred, err := s.creds.Get(ctx, userID, model.AccountInstitutional)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil, apperror.MissingInstitutionalLink()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("service/account: reading institutional credential: %w", err)
	}
	if cred.AccessToken == "" {
		return nil, nil, apperror.MissingInstitutionalLink()
	}
	return s.github.ForToken(cred.AccessToken), cred, nil
}

// AppInfo reports the App the server authenticates as.
func (s *AccountService) AppInfo(ctx context.Context) (*githubapi.AppInfo, error) {
	info, err := s.github.App(ctx)
	if err != nil {
		return nil, apperror.Provider("GET /app failed", err)
	}
	return info, nil
}

// InstallationInfo reports the metadata of an installation by id.
func (s *AccountService) InstallationInfo(ctx context.Context, rawID string) (*githubapi.InstallationInfo, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperror.ValidationFailed("id", "invalid installation id")
	}
	info, err := s.github.Installation(ctx, id)
	if err != nil {
		return nil, apperror.Provider("GET /app/installations failed", err)
	}
	return info, nil
}
