package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// ProjectService manages class projects and their members.
type ProjectService struct {
	projects    repository.ProjectRepository
	memberships repository.MembershipRepository
	subjects    repository.SubjectRepository
	users       repository.UserRepository
	logger      *slog.Logger
}

func NewProjectService(
	projects repository.ProjectRepository,
	memberships repository.MembershipRepository,
	subjects repository.SubjectRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *ProjectService {
	return &ProjectService{
		projects:    projects,
		memberships: memberships,
		subjects:    subjects,
		users:       users,
		logger:      logger,
	}
}

type NewProject struct {
	Title     string
	GroupType model.GroupType // GROUP when empty
	SubjectID string
}

// Create stores a project for a subject and makes userID its OWNER. A user
// assigned to a faculty may only create projects for subjects of that faculty.
func (s *ProjectService) Create(ctx context.Context, userID string, in NewProject) (*model.Project, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("titulo", "titulo is required")
	}
	gt := in.GroupType
	if gt == "" {
		gt = model.GroupTypeGroup
	}
	if !gt.Valid() {
		return nil, apperror.ValidationFailed("tipoGrupo", "tipoGrupo must be GROUP or INDIVIDUAL")
	}
	if in.SubjectID == "" {
		return nil, apperror.ValidationFailed("materiaId", "materiaId is required")
	}

	subject, err := s.subjects.GetByID(ctx, in.SubjectID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.ValidationFailed("materiaId", "the subject does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("service/project: loading subject: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/project: loading user: %w", err)
	}
	if user.FacultyID != "" && subject.FacultyID != "" && user.FacultyID != subject.FacultyID {
		return nil, apperror.Forbidden("the subject does not belong to your faculty")
	}

	p := &model.Project{Title: title, SubjectCode: subject.Code, GroupType: gt}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("service/project: creating project: %w", err)
	}
	if err := s.memberships.Upsert(ctx, &model.Membership{
		ProjectID: p.ID,
		UserID:    userID,
		Role:      model.MemberRoleOwner,
	}); err != nil {
		return nil, fmt.Errorf("service/project: adding owner: %w", err)
	}

	s.logger.Info("project created",
		slog.String("id", p.ID),
		slog.String("owner", userID),
		slog.String("subject", subject.Code),
	)
	return p, nil
}

// NewMember names the user to add by id or, failing that, by email.
type NewMember struct {
	UserID string
	Email  string
	Role   model.MemberRole // MEMBER when empty
}

// AddMember adds a user to projectID. Only the project OWNER may add members.
func (s *ProjectService) AddMember(ctx context.Context, callerID, projectID string, in NewMember) (*model.Membership, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, projectID, callerID, "only the project OWNER can add members"); err != nil {
		return nil, err
	}

	role := model.MemberRole(strings.ToUpper(strings.TrimSpace(string(in.Role))))
	if role == "" {
		role = model.MemberRoleMember
	}
	if !role.Valid() {
		return nil, apperror.ValidationFailed("rol", "rol must be OWNER or MEMBER")
	}

	target, err := s.resolveMember(ctx, in)
	if err != nil {
		return nil, err
	}

	m := &model.Membership{ProjectID: projectID, UserID: target.ID, Role: role}
	if err := s.memberships.Add(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("project member added",
		slog.String("project", projectID),
		slog.String("user", target.ID),
		slog.String("role", string(role)),
	)
	return m, nil
}

// MyProject is one row of ListMine.
type MyProject struct {
	ID          string           `json:"id"`
	Title       string           `json:"titulo"`
	SubjectCode string           `json:"codigoMateria,omitempty"`
	GroupType   model.GroupType  `json:"tipoGrupo"`
	RepoURL     string           `json:"repoUrl,omitempty"`
	Role        model.MemberRole `json:"rol"`
}

// ListMine returns the projects userID belongs to, most recently joined first.
func (s *ProjectService) ListMine(ctx context.Context, userID string) ([]MyProject, error) {
	rows, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/project: listing memberships: %w", err)
	}
	out := make([]MyProject, 0, len(rows))
	for _, r := range rows {
		out = append(out, MyProject{
			ID:          r.Project.ID,
			Title:       r.Project.Title,
			SubjectCode: r.Project.SubjectCode,
			GroupType:   r.Project.GroupType,
			RepoURL:     r.Project.RepoURL,
			Role:        r.Role,
		})
	}
	return out, nil
}

func (s *ProjectService) requireOwner(ctx context.Context, projectID, userID, msg string) error {
	m, err := s.memberships.Get(ctx, projectID, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.Forbidden(msg)
	}
	if err != nil {
		return fmt.Errorf("service/project: loading membership: %w", err)
	}
	if m.Role != model.MemberRoleOwner {
		return apperror.Forbidden(msg)
	}
	return nil
}

func (s *ProjectService) resolveMember(ctx context.Context, in NewMember) (*model.User, error) {
	if in.UserID != "" {
		u, err := s.users.GetByID(ctx, in.UserID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/project: loading user: %w", err)
		}
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		u, err := s.users.GetByEmail(ctx, email)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/project: loading user: %w", err)
		}
	}
	return nil, apperror.New(apperror.ErrNotFound, "the user to add does not exist")
}
