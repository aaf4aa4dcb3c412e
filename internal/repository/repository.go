// Package repository declares the storage interfaces the services depend on.
// The sqlite package implements all of them; service tests use in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/Ross11547/Automatizacion/internal/model"
)

// UserFilter narrows UserRepository.List. Zero values match everything.
type UserFilter struct {
	RoleID string
	Query  string // case-insensitive match on name, last name, email or code
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, f UserFilter) ([]model.User, error)
	Update(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
	// CountByRole returns the number of users per role id.
	CountByRole(ctx context.Context) (map[string]int, error)
	// CreatedSince returns the creation times of the role's users created at
	// or after since.
	CreatedSince(ctx context.Context, roleID string, since time.Time) ([]time.Time, error)
}

type RoleRepository interface {
	GetByName(ctx context.Context, name string) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
}

// CredentialRepository stores linked GitHub accounts, one per (user, slot).
type CredentialRepository interface {
	Upsert(ctx context.Context, c *model.Credential) error
	Get(ctx context.Context, userID string, t model.AccountType) (*model.Credential, error)
	ListByUser(ctx context.Context, userID string) ([]model.Credential, error)
}

type InstallationRepository interface {
	// Upsert inserts or updates by InstallationID. The latest installer becomes
	// the owning user.
	Upsert(ctx context.Context, inst *model.Installation) error
	UpdateAccount(ctx context.Context, installationID int64, login string, accountID int64) error
	ListByUser(ctx context.Context, userID string) ([]model.Installation, error)
	// FirstForUser returns the user's oldest installation.
	FirstForUser(ctx context.Context, userID string) (*model.Installation, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	GetByRepoURL(ctx context.Context, url string) (*model.Project, error)
	UpdateTitle(ctx context.Context, id, title string) error
	// SetRepoURL writes url only if the project has none yet and reports
	// whether it did.
	SetRepoURL(ctx context.Context, id, url string) (bool, error)
}

type MembershipRepository interface {
	// Add fails with apperror.ErrConflict if the pair already exists.
	Add(ctx context.Context, m *model.Membership) error
	// Upsert inserts the pair or updates its role.
	Upsert(ctx context.Context, m *model.Membership) error
	Get(ctx context.Context, projectID, userID string) (*model.Membership, error)
	ListByProject(ctx context.Context, projectID string) ([]model.Membership, error)
	// ListByUser returns the user's memberships with their projects, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.ProjectMembership, error)
}

type FacultyRepository interface {
	Create(ctx context.Context, f *model.Faculty) error
	GetByID(ctx context.Context, id string) (*model.Faculty, error)
	List(ctx context.Context) ([]model.Faculty, error)
	Update(ctx context.Context, f *model.Faculty) error
	Delete(ctx context.Context, id string) error
}

type CareerRepository interface {
	Create(ctx context.Context, c *model.Career) error
	GetByID(ctx context.Context, id string) (*model.Career, error)
	List(ctx context.Context) ([]model.Career, error)
	Update(ctx context.Context, c *model.Career) error
	Delete(ctx context.Context, id string) error
}

// SubjectFilter narrows SubjectRepository.List.
type SubjectFilter struct {
	CareerID   string
	SemesterID string
	Query      string
}

type SubjectRepository interface {
	Create(ctx context.Context, s *model.Subject) error
	GetByID(ctx context.Context, id string) (*model.Subject, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, f SubjectFilter) ([]model.Subject, error)
	Update(ctx context.Context, s *model.Subject) error
	Delete(ctx context.Context, id string) error
}

type SemesterRepository interface {
	// Create fails with apperror.ErrConflict if the career already has a
	// semester with that number.
	Create(ctx context.Context, s *model.Semester) error
	GetByID(ctx context.Context, id string) (*model.Semester, error)
	// List returns the semesters of careerID, or of every career when it is
	// empty, ordered by career and number.
	List(ctx context.Context, careerID string) ([]model.Semester, error)
	Update(ctx context.Context, s *model.Semester) error
	Delete(ctx context.Context, id string) error
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *model.Schedule) error
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	// List returns the slots of subjectID, or every slot when it is empty,
	// ordered by day and start time.
	List(ctx context.Context, subjectID string) ([]model.Schedule, error)
	Update(ctx context.Context, s *model.Schedule) error
	Delete(ctx context.Context, id string) error
	// Overlaps reports whether another slot of the subject on day intersects
	// [start, end). excludeID is ignored so a slot never overlaps itself.
	Overlaps(ctx context.Context, subjectID, day, start, end, excludeID string) (bool, error)
}

// AssignmentRepository links users to subjects: the subjects a teacher or
// director teaches and the ones a student is enrolled in.
type AssignmentRepository interface {
	// Replace sets the user's subjects to exactly subjectIDs.
	Replace(ctx context.Context, userID string, subjectIDs []string) error
	// SubjectsByUser returns the subjects of each given user, ordered by name.
	// Users without subjects are absent from the map.
	SubjectsByUser(ctx context.Context, userIDs ...string) (map[string][]model.Subject, error)
}
