package model

import "time"

type GroupType string

const (
	GroupTypeGroup      GroupType = "GROUP"
	GroupTypeIndividual GroupType = "INDIVIDUAL"
)

func (g GroupType) Valid() bool {
	return g == GroupTypeGroup || g == GroupTypeIndividual
}

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleMember MemberRole = "MEMBER"
)

func (r MemberRole) Valid() bool {
	return r == MemberRoleOwner || r == MemberRoleMember
}

// Project is a class project. RepoURL is empty until a repository has been
// provisioned (or imported) and is not changed afterwards.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"titulo"`
	SubjectCode string    `json:"codigoMateria,omitempty"`
	GroupType   GroupType `json:"tipoGrupo"`
	RepoURL     string    `json:"repoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Membership links a user to a project. Unique per (ProjectID, UserID).
type Membership struct {
	ProjectID string     `json:"proyectoId"`
	UserID    string     `json:"usuarioId"`
	Role      MemberRole `json:"rol"`
	JoinedAt  time.Time  `json:"joinedAt"`
}

// ProjectMembership is a membership read together with its project.
type ProjectMembership struct {
	Membership
	Project Project `json:"proyecto"`
}
