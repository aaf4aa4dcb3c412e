package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// In-memory fakes for the repository interfaces and the GitHub client. They
// keep only the behavior the services rely on.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type idSeq struct {
	mu sync.Mutex
	n  int
}

func (s *idSeq) next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", prefix, s.n)
}

// ---- users and roles ----

type fakeUsers struct {
	mu    sync.Mutex
	seq   idSeq
	users map[string]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*model.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.users {
		if strings.EqualFold(other.Email, u.Email) {
			return apperror.Conflict("email already registered")
		}
	}
	u.ID = f.seq.next("user")
	u.CreatedAt = time.Now()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUsers) List(_ context.Context, flt repository.UserFilter) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	q := strings.ToLower(flt.Query)
	for _, u := range f.users {
		if flt.RoleID != "" && u.RoleID != flt.RoleID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.FirstName+" "+u.LastName+" "+u.Email+" "+u.Code), q) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	cp := *u
	cp.PasswordHash = cur.PasswordHash
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) CountByRole(_ context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int{}
	for _, u := range f.users {
		out[u.RoleID]++
	}
	return out, nil
}

func (f *fakeUsers) CreatedSince(_ context.Context, roleID string, since time.Time) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []time.Time{}
	for _, u := range f.users {
		if u.RoleID == roleID && !u.CreatedAt.Before(since) {
			out = append(out, u.CreatedAt)
		}
	}
	return out, nil
}

type fakeRoles struct {
	mu    sync.Mutex
	roles []model.Role
	calls int
}

func (f *fakeRoles) GetByName(_ context.Context, name string) (*model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, r := range f.roles {
		if strings.EqualFold(r.Name, name) {
			cp := r
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("role", name)
}

func (f *fakeRoles) List(_ context.Context) ([]model.Role, error) {
	return append([]model.Role(nil), f.roles...), nil
}

// ---- GitHub credentials and installations ----

type credKey struct {
	user string
	t    model.AccountType
}

type fakeCreds struct {
	mu    sync.Mutex
	seq   idSeq
	creds map[credKey]*model.Credential
}

func newFakeCreds(creds ...*model.Credential) *fakeCreds {
	f := &fakeCreds{creds: map[credKey]*model.Credential{}}
	for _, c := range creds {
		f.creds[credKey{c.UserID, c.AccountType}] = c
	}
	return f
}

func (f *fakeCreds) Upsert(_ context.Context, c *model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := credKey{c.UserID, c.AccountType}
	if cur, ok := f.creds[k]; ok {
		c.ID = cur.ID
		c.CreatedAt = cur.CreatedAt
	} else {
		c.ID = f.seq.next("cred")
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()
	cp := *c
	f.creds[k] = &cp
	return nil
}

func (f *fakeCreds) Get(_ context.Context, userID string, t model.AccountType) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[credKey{userID, t}]
	if !ok {
		return nil, apperror.NotFound(string(t)+" credential", userID)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCreds) ListByUser(_ context.Context, userID string) ([]model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Credential{}
	for k, c := range f.creds {
		if k.user == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountType < out[j].AccountType })
	return out, nil
}

func (f *fakeCreds) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creds)
}

type fakeInstallations struct {
	mu    sync.Mutex
	seq   idSeq
	items []*model.Installation
}

func (f *fakeInstallations) Upsert(_ context.Context, inst *model.Installation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cur := range f.items {
		if cur.InstallationID == inst.InstallationID {
			cur.UserID = inst.UserID
			if inst.AccountLogin != "" {
				cur.AccountLogin = inst.AccountLogin
			}
			if inst.AccountID != 0 {
				cur.AccountID = inst.AccountID
			}
			*inst = *cur
			return nil
		}
	}
	inst.ID = f.seq.next("inst")
	inst.CreatedAt = time.Now()
	cp := *inst
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeInstallations) UpdateAccount(_ context.Context, id int64, login string, accountID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cur := range f.items {
		if cur.InstallationID == id {
			if login != "" {
				cur.AccountLogin = login
			}
			if accountID != 0 {
				cur.AccountID = accountID
			}
			return nil
		}
	}
	return apperror.NotFound("installation", fmt.Sprint(id))
}

func (f *fakeInstallations) ListByUser(_ context.Context, userID string) ([]model.Installation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Installation{}
	for _, cur := range f.items {
		if cur.UserID == userID {
			out = append(out, *cur)
		}
	}
	return out, nil
}

func (f *fakeInstallations) FirstForUser(ctx context.Context, userID string) (*model.Installation, error) {
	all, _ := f.ListByUser(ctx, userID)
	if len(all) == 0 {
		return nil, apperror.NotFound("installation for user", userID)
	}
	return &all[0], nil
}

func (f *fakeInstallations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// ---- projects and memberships ----

type fakeProjects struct {
	mu       sync.Mutex
	seq      idSeq
	projects map[string]*model.Project
}

func newFakeProjects(ps ...*model.Project) *fakeProjects {
	f := &fakeProjects{projects: map[string]*model.Project{}}
	for _, p := range ps {
		f.projects[p.ID] = p
	}
	return f
}

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.seq.next("proj")
	p.CreatedAt = time.Now()
	cp := *p
	f.projects[p.ID] = &cp
	return nil
}

func (f *fakeProjects) GetByID(_ context.Context, id string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjects) GetByRepoURL(_ context.Context, url string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.RepoURL == url {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("project with repository", url)
}

func (f *fakeProjects) UpdateTitle(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return apperror.NotFound("project", id)
	}
	p.Title = title
	return nil
}

func (f *fakeProjects) SetRepoURL(_ context.Context, id, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.RepoURL != "" {
		return false, nil
	}
	p.RepoURL = url
	return true, nil
}

func (f *fakeProjects) repoURL(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects[id].RepoURL
}

type fakeMemberships struct {
	mu       sync.Mutex
	items    []model.Membership
	projects *fakeProjects
}

func (f *fakeMemberships) find(projectID, userID string) int {
	for i, m := range f.items {
		if m.ProjectID == projectID && m.UserID == userID {
			return i
		}
	}
	return -1
}

func (f *fakeMemberships) Add(_ context.Context, m *model.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(m.ProjectID, m.UserID) >= 0 {
		return apperror.Conflict("user is already a project member")
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	f.items = append(f.items, *m)
	return nil
}

func (f *fakeMemberships) Upsert(_ context.Context, m *model.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(m.ProjectID, m.UserID); i >= 0 {
		f.items[i].Role = m.Role
		return nil
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	f.items = append(f.items, *m)
	return nil
}

func (f *fakeMemberships) Get(_ context.Context, projectID, userID string) (*model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(projectID, userID); i >= 0 {
		cp := f.items[i]
		return &cp, nil
	}
	return nil, apperror.NotFound("membership", projectID+"/"+userID)
}

func (f *fakeMemberships) ListByProject(_ context.Context, projectID string) ([]model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Membership{}
	for _, m := range f.items {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemberships) ListByUser(ctx context.Context, userID string) ([]model.ProjectMembership, error) {
	f.mu.Lock()
	var mine []model.Membership
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].UserID == userID {
			mine = append(mine, f.items[i])
		}
	}
	f.mu.Unlock()

	out := []model.ProjectMembership{}
	for _, m := range mine {
		p, err := f.projects.GetByID(ctx, m.ProjectID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ProjectMembership{Membership: m, Project: *p})
	}
	return out, nil
}

// ---- catalog ----

type fakeFaculties struct {
	items map[string]*model.Faculty
}

func (f *fakeFaculties) Create(_ context.Context, fac *model.Faculty) error {
	fac.ID = fmt.Sprintf("fac-%d", len(f.items)+1)
	cp := *fac
	f.items[fac.ID] = &cp
	return nil
}

func (f *fakeFaculties) GetByID(_ context.Context, id string) (*model.Faculty, error) {
	fac, ok := f.items[id]
	if !ok {
		return nil, apperror.NotFound("faculty", id)
	}
	cp := *fac
	return &cp, nil
}

func (f *fakeFaculties) List(_ context.Context) ([]model.Faculty, error) {
	out := []model.Faculty{}
	for _, fac := range f.items {
		out = append(out, *fac)
	}
	return out, nil
}

func (f *fakeFaculties) Update(_ context.Context, fac *model.Faculty) error {
	if _, ok := f.items[fac.ID]; !ok {
		return apperror.NotFound("faculty", fac.ID)
	}
	cp := *fac
	f.items[fac.ID] = &cp
	return nil
}

func (f *fakeFaculties) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

type fakeCareers struct {
	items map[string]*model.Career
}

func (f *fakeCareers) Create(_ context.Context, c *model.Career) error {
	c.ID = fmt.Sprintf("car-%d", len(f.items)+1)
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCareers) GetByID(_ context.Context, id string) (*model.Career, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, apperror.NotFound("career", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCareers) List(_ context.Context) ([]model.Career, error) {
	out := []model.Career{}
	for _, c := range f.items {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCareers) Update(_ context.Context, c *model.Career) error {
	cp := *c
	f.items[c.ID] = &cp
	return nil
}

func (f *fakeCareers) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

type fakeSubjects struct {
	items   map[string]*model.Subject
	careers *fakeCareers
}

func (f *fakeSubjects) Create(_ context.Context, s *model.Subject) error {
	for _, other := range f.items {
		if other.Code == s.Code {
			return apperror.Conflict("subject code already exists")
		}
	}
	s.ID = fmt.Sprintf("sub-%d", len(f.items)+1)
	cp := *s
	f.items[s.ID] = &cp
	return nil
}

func (f *fakeSubjects) GetByID(ctx context.Context, id string) (*model.Subject, error) {
	s, ok := f.items[id]
	if !ok {
		return nil, apperror.NotFound("subject", id)
	}
	cp := *s
	if f.careers != nil {
		if c, err := f.careers.GetByID(ctx, s.CareerID); err == nil {
			cp.CareerName = c.Name
			cp.FacultyID = c.FacultyID
		}
	}
	return &cp, nil
}

func (f *fakeSubjects) CodeExists(_ context.Context, code string) (bool, error) {
	for _, s := range f.items {
		if s.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSubjects) List(_ context.Context, flt repository.SubjectFilter) ([]model.Subject, error) {
	out := []model.Subject{}
	for _, s := range f.items {
		if flt.CareerID != "" && s.CareerID != flt.CareerID {
			continue
		}
		if flt.SemesterID != "" && s.SemesterID != flt.SemesterID {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSubjects) Update(_ context.Context, s *model.Subject) error {
	for _, other := range f.items {
		if other.ID != s.ID && other.Code == s.Code {
			return apperror.Conflict("subject code already exists")
		}
	}
	cp := *s
	f.items[s.ID] = &cp
	return nil
}

func (f *fakeSubjects) Delete(_ context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return apperror.NotFound("subject", id)
	}
	delete(f.items, id)
	return nil
}

type fakeSemesters struct {
	items map[string]*model.Semester
}

func newFakeSemesters(items ...*model.Semester) *fakeSemesters {
	f := &fakeSemesters{items: map[string]*model.Semester{}}
	for _, s := range items {
		f.items[s.ID] = s
	}
	return f
}

func (f *fakeSemesters) Create(_ context.Context, s *model.Semester) error {
	for _, other := range f.items {
		if other.CareerID == s.CareerID && other.Number == s.Number {
			return apperror.ValidationFailed("numero", "the career already has a semester with that number")
		}
	}
	s.ID = fmt.Sprintf("sem-%d", len(f.items)+1)
	cp := *s
	f.items[s.ID] = &cp
	return nil
}

func (f *fakeSemesters) GetByID(_ context.Context, id string) (*model.Semester, error) {
	s, ok := f.items[id]
	if !ok {
		return nil, apperror.NotFound("semester", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSemesters) List(_ context.Context, careerID string) ([]model.Semester, error) {
	out := []model.Semester{}
	for _, s := range f.items {
		if careerID == "" || s.CareerID == careerID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *fakeSemesters) Update(_ context.Context, s *model.Semester) error {
	for _, other := range f.items {
		if other.ID != s.ID && other.CareerID == s.CareerID && other.Number == s.Number {
			return apperror.ValidationFailed("numero", "the career already has a semester with that number")
		}
	}
	cp := *s
	f.items[s.ID] = &cp
	return nil
}

func (f *fakeSemesters) Delete(_ context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return apperror.NotFound("semester", id)
	}
	delete(f.items, id)
	return nil
}

type fakeSchedules struct {
	items map[string]*model.Schedule
}

func newFakeSchedules() *fakeSchedules {
	return &fakeSchedules{items: map[string]*model.Schedule{}}
}

func (f *fakeSchedules) Create(_ context.Context, s *model.Schedule) error {
	s.ID = fmt.Sprintf("hor-%d", len(f.items)+1)
	cp := *s
	f.items[s.ID] = &cp
	return nil
}

func (f *fakeSchedules) GetByID(_ context.Context, id string) (*model.Schedule, error) {
	s, ok := f.items[id]
	if !ok {
		return nil, apperror.NotFound("schedule", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSchedules) List(_ context.Context, subjectID string) ([]model.Schedule, error) {
	out := []model.Schedule{}
	for _, s := range f.items {
		if subjectID == "" || s.SubjectID == subjectID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (f *fakeSchedules) Update(_ context.Context, s *model.Schedule) error {
	if _, ok := f.items[s.ID]; !ok {
		return apperror.NotFound("schedule", s.ID)
	}
	cp := *s
	f.items[s.ID] = &cp
	return nil
}

func (f *fakeSchedules) Delete(_ context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return apperror.NotFound("schedule", id)
	}
	delete(f.items, id)
	return nil
}

func (f *fakeSchedules) Overlaps(_ context.Context, subjectID, day, start, end, excludeID string) (bool, error) {
	for _, s := range f.items {
		if s.ID != excludeID && s.SubjectID == subjectID && s.Day == day && s.Start < end && s.End > start {
			return true, nil
		}
	}
	return false, nil
}

type fakeAssignments struct {
	subjects *fakeSubjects
	byUser   map[string][]string
}

func newFakeAssignments(subjects *fakeSubjects) *fakeAssignments {
	return &fakeAssignments{subjects: subjects, byUser: map[string][]string{}}
}

func (f *fakeAssignments) Replace(_ context.Context, userID string, subjectIDs []string) error {
	f.byUser[userID] = append([]string(nil), subjectIDs...)
	return nil
}

func (f *fakeAssignments) SubjectsByUser(ctx context.Context, userIDs ...string) (map[string][]model.Subject, error) {
	out := map[string][]model.Subject{}
	for _, userID := range userIDs {
		for _, id := range f.byUser[userID] {
			sub, err := f.subjects.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			out[userID] = append(out[userID], *sub)
		}
	}
	return out, nil
}

// ---- GitHub ----

// fakeGitHub records every call. Sessions are keyed by the credential they
// act as: "token:<access token>" or "inst:<installation id>".
type fakeGitHub struct {
	mu sync.Mutex

	account *githubapi.Account
	emails  []githubapi.Email
	// emailsErr makes ListEmails fail.
	emailsErr error

	installations map[int64]*githubapi.InstallationInfo
	installErr    error

	// inviteStatus maps "owner/repo" to the status AddCollaborator answers.
	// Unlisted repos answer 201. A status of 0 makes the call fail.
	inviteStatus map[string]int
	createErr    error
	ownedRepos   []githubapi.Repo

	calls   []string
	invites []string
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		installations: map[int64]*githubapi.InstallationInfo{},
		inviteStatus:  map[string]int{},
	}
}

func (g *fakeGitHub) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGitHub) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGitHub) ForToken(token string) githubapi.Session {
	return &fakeSession{gh: g, as: "token:" + token}
}

func (g *fakeGitHub) ForInstallation(_ context.Context, id int64) (githubapi.Session, error) {
	g.record(fmt.Sprintf("ForInstallation %d", id))
	return &fakeSession{gh: g, as: fmt.Sprintf("inst:%d", id)}, nil
}

func (g *fakeGitHub) Installation(_ context.Context, id int64) (*githubapi.InstallationInfo, error) {
	g.record(fmt.Sprintf("Installation %d", id))
	if g.installErr != nil {
		return nil, g.installErr
	}
	info, ok := g.installations[id]
	if !ok {
		return nil, errors.New("GET /app/installations: 404 Not Found")
	}
	return info, nil
}

func (g *fakeGitHub) App(_ context.Context) (*githubapi.AppInfo, error) {
	g.record("App")
	return &githubapi.AppInfo{ID: 1, Slug: "gestteam", Name: "GestTeam"}, nil
}

type fakeSession struct {
	gh *fakeGitHub
	as string
}

func (s *fakeSession) AuthenticatedUser(_ context.Context) (*githubapi.Account, error) {
	s.gh.record(s.as + " AuthenticatedUser")
	if s.gh.account == nil {
		return nil, errors.New("GET /user: 401 Bad credentials")
	}
	return s.gh.account, nil
}

func (s *fakeSession) ListEmails(_ context.Context) ([]githubapi.Email, error) {
	s.gh.record(s.as + " ListEmails")
	if s.gh.emailsErr != nil {
		return nil, s.gh.emailsErr
	}
	return s.gh.emails, nil
}

func (s *fakeSession) CreateUserRepo(_ context.Context, r githubapi.NewRepo) (*githubapi.Repo, error) {
	s.gh.record(s.as + " CreateUserRepo " + r.Name)
	if s.gh.createErr != nil {
		return nil, s.gh.createErr
	}
	return &githubapi.Repo{Name: r.Name, Owner: "inst-user", FullName: "inst-user/" + r.Name,
		HTMLURL: "https://github.com/inst-user/" + r.Name, Private: r.Private}, nil
}

func (s *fakeSession) CreateOrgRepo(_ context.Context, org string, r githubapi.NewRepo) (*githubapi.Repo, error) {
	s.gh.record(s.as + " CreateOrgRepo " + org + "/" + r.Name)
	if s.gh.createErr != nil {
		return nil, s.gh.createErr
	}
	return &githubapi.Repo{Name: r.Name, Owner: org, OwnerType: model.OwnerTypeOrganization,
		FullName: org + "/" + r.Name, HTMLURL: "https://github.com/" + org + "/" + r.Name, Private: r.Private}, nil
}

func (s *fakeSession) AddCollaborator(_ context.Context, owner, repo, username, _ string) (int, error) {
	s.gh.record(s.as + " AddCollaborator " + owner + "/" + repo + " " + username)
	s.gh.mu.Lock()
	s.gh.invites = append(s.gh.invites, s.as+" "+owner+"/"+repo)
	status, ok := s.gh.inviteStatus[owner+"/"+repo]
	s.gh.mu.Unlock()
	if !ok {
		return 201, nil
	}
	if status == 0 {
		return 0, errors.New("PUT collaborators: connection reset")
	}
	if status >= 400 {
		return status, fmt.Errorf("PUT collaborators: %d", status)
	}
	return status, nil
}

func (s *fakeSession) ListOwnedRepos(_ context.Context, _, _ string) ([]githubapi.Repo, error) {
	s.gh.record(s.as + " ListOwnedRepos")
	return s.gh.ownedRepos, nil
}

func (s *fakeSession) ListCollaborators(_ context.Context, owner, repo string) ([]githubapi.Collaborator, error) {
	s.gh.record(s.as + " ListCollaborators " + owner + "/" + repo)
	return []githubapi.Collaborator{{Login: owner}}, nil
}

func mustNoCalls(t *testing.T, g *fakeGitHub) {
	t.Helper()
	if n := g.callCount(); n != 0 {
		t.Fatalf("expected no GitHub calls, got %d: %v", n, g.calls)
	}
}
