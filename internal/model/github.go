package model

import "time"

// AccountType names one of the two GitHub account slots a user can fill.
type AccountType string

const (
	AccountInstitutional AccountType = "INSTITUTIONAL"
	AccountPersonal      AccountType = "PERSONAL"
)

// Valid reports whether t is one of the two known slots.
func (t AccountType) Valid() bool {
	return t == AccountInstitutional || t == AccountPersonal
}

// Credential is a linked GitHub account. There is at most one per
// (UserID, AccountType); relinking overwrites it.
type Credential struct {
	ID          string      `json:"id"`
	UserID      string      `json:"usuarioId"`
	AccountType AccountType `json:"tipoCuenta"`
	GitHubID    int64       `json:"githubId"`
	Login       string      `json:"login"`
	AvatarURL   string      `json:"avatarUrl,omitempty"`
	Email       string      `json:"correo,omitempty"`
	AccessToken string      `json:"-"`
	TokenType   string      `json:"-"`
	Scopes      string      `json:"-"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Installation records a GitHub App installation on a user or organization
// account. InstallationID is assigned by GitHub and globally unique.
//
// AccountLogin and AccountID stay zero until the installation metadata has
// been fetched at least once.
type Installation struct {
	ID             string    `json:"id"`
	UserID         string    `json:"usuarioId"`
	InstallationID int64     `json:"installationId"`
	AccountLogin   string    `json:"accountLogin,omitempty"`
	AccountID      int64     `json:"accountId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// GitHub account types as reported in installation metadata.
const (
	OwnerTypeUser         = "User"
	OwnerTypeOrganization = "Organization"
)
