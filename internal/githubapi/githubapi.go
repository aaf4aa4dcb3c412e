// Package githubapi is the only place that talks to the GitHub REST API.
//
// Services depend on the Client and Session interfaces below, never on
// go-github directly, so flows can be tested with fakes and the transport can
// be pointed at an httptest server.
//
// AUTHORITIES:
//
//	ForToken(oauth)        acts as a linked user (INSTITUTIONAL or PERSONAL token)
//	ForInstallation(id)    acts as the App inside one installation
//	Installation / App     act as the App itself, authenticated with its RS256 JWT
package githubapi

import (
	"context"
)

// Email is one entry of GET /user/emails.
type Email struct {
	Address  string
	Primary  bool
	Verified bool
}

// Account is the authenticated user's profile.
type Account struct {
	ID        int64
	Login     string
	AvatarURL string
	Email     string
}

// InstallationInfo is the metadata of an App installation.
type InstallationInfo struct {
	ID           int64
	AccountLogin string
	AccountID    int64
	AccountType  string // "User" or "Organization"
	AppID        int64
}

type AppInfo struct {
	ID   int64
	Slug string
	Name string
}

type Repo struct {
	Name      string
	FullName  string
	Owner     string
	OwnerType string
	HTMLURL   string
	Private   bool
}

type Collaborator struct {
	Login     string
	SiteAdmin bool
}

// NewRepo describes a repository to create.
type NewRepo struct {
	Name        string
	Private     bool
	AutoInit    bool
	HasIssues   bool
	HasProjects bool
	HasWiki     bool
}

// Session is a GitHub API handle bound to one credential.
type Session interface {
	AuthenticatedUser(ctx context.Context) (*Account, error)
	ListEmails(ctx context.Context) ([]Email, error)

	CreateUserRepo(ctx context.Context, r NewRepo) (*Repo, error)
	CreateOrgRepo(ctx context.Context, org string, r NewRepo) (*Repo, error)

	// AddCollaborator returns the HTTP status GitHub answered with. A non-nil
	// error may still come with a status when GitHub replied with an error.
	AddCollaborator(ctx context.Context, owner, repo, username, permission string) (int, error)

	// ListOwnedRepos pages through every repository of the authenticated user
	// matching affiliation ("" for all), 100 per page, one page at a time.
	ListOwnedRepos(ctx context.Context, affiliation, sort string) ([]Repo, error)
	ListCollaborators(ctx context.Context, owner, repo string) ([]Collaborator, error)
}

// Client creates Sessions and performs App-level calls.
type Client interface {
	ForToken(token string) Session
	ForInstallation(ctx context.Context, installationID int64) (Session, error)
	Installation(ctx context.Context, installationID int64) (*InstallationInfo, error)
	App(ctx context.Context) (*AppInfo, error)
}

// InviteAccepted reports whether GitHub accepted a PUT collaborator call:
// 201 invitation created, 202 pending organization approval, 204 already a
// collaborator.
func InviteAccepted(status int) bool {
	return status == 201 || status == 202 || status == 204
}

// InvitePending reports whether an accepted invitation still awaits approval.
func InvitePending(status int) bool {
	return status == 202
}
