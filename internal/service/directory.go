package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// DefaultPassword is assigned when a directory member is created without one.
const DefaultPassword = "123456"

// Person is the directory view of a teacher, student or director.
type Person struct {
	ID         string       `json:"id"`
	FirstName  string       `json:"nombre"`
	LastName   string       `json:"apellido"`
	Email      string       `json:"email"`
	Phone      string       `json:"telefono"`
	CI         int64        `json:"ci"`
	Department string       `json:"departamento"`
	Specialty  string       `json:"especialidad"`
	Code       string       `json:"codigo"`
	FacultyID  string       `json:"idFacultad,omitempty"`
	CareerID   string       `json:"idCarrera,omitempty"`
	SemesterID string       `json:"semestreId,omitempty"`
	Semester   string       `json:"semestre,omitempty"`
	Subjects   []SubjectRef `json:"materias"`
	Active     bool         `json:"activo"`
}

type SubjectRef struct {
	ID   string `json:"id"`
	Name string `json:"nombre"`
}

// PersonInput is the input of DirectoryService.Create. Code is always
// derived. Email is derived too, except that the director directory keeps a
// caller address inside the institutional domain.
type PersonInput struct {
	FirstName  string
	LastName   string
	Phone      string
	CI         int64
	Email      string
	FacultyID  string
	CareerID   string
	SemesterID string
	SubjectIDs []string
	Password   string
	Active     *bool
}

// PersonPatch lists the fields DirectoryService.Update changes; nil fields
// are kept. An empty FacultyID, CareerID or SemesterID clears it. A nil
// SubjectIDs keeps the assignments and an empty one removes them all.
type PersonPatch struct {
	FirstName  *string
	LastName   *string
	Phone      *string
	CI         *int64
	Email      *string
	FacultyID  *string
	CareerID   *string
	SemesterID *string
	SubjectIDs []string
	Password   *string
	Active     *bool
}

type directoryKind struct {
	role     string
	resource string
	// lastNameRequired rejects creating or renaming to an empty last name.
	lastNameRequired bool
	// keepsEmail accepts a caller address in the institutional domain and
	// changes the stored address only when one is sent.
	keepsEmail bool
	// semesters enables SemesterID.
	semesters bool
}

var (
	teacherKind  = directoryKind{role: model.RoleTeacher, resource: "teacher"}
	studentKind  = directoryKind{role: model.RoleStudent, resource: "student", semesters: true}
	directorKind = directoryKind{role: model.RoleDirector, resource: "director", lastNameRequired: true, keepsEmail: true}
)

// DirectoryDeps groups the collaborators of a DirectoryService.
type DirectoryDeps struct {
	Users       repository.UserRepository
	Roles       *RoleResolver
	Faculties   repository.FacultyRepository
	Careers     repository.CareerRepository
	Semesters   repository.SemesterRepository
	Subjects    repository.SubjectRepository
	Assignments repository.AssignmentRepository
	Passwords   *auth.PasswordService
	EmailPrefix string
	Domain      string
	Logger      *slog.Logger
}

// DirectoryService manages the users of one role: teachers, students or
// directors. Each member gets a derived institutional email and a code made
// of the career abbreviation (or one derived from the career or faculty
// name) followed by the CI.
type DirectoryService struct {
	deps DirectoryDeps
	kind directoryKind
}

func NewTeacherDirectory(d DirectoryDeps) *DirectoryService {
	return &DirectoryService{deps: d, kind: teacherKind}
}

func NewStudentDirectory(d DirectoryDeps) *DirectoryService {
	return &DirectoryService{deps: d, kind: studentKind}
}

func NewDirectorDirectory(d DirectoryDeps) *DirectoryService {
	return &DirectoryService{deps: d, kind: directorKind}
}

func (s *DirectoryService) roleID(ctx context.Context) (string, error) {
	id, err := s.deps.Roles.ID(ctx, s.kind.role)
	if errors.Is(err, apperror.ErrNotFound) {
		return "", apperror.ValidationFailed("idRol", "the "+s.kind.role+" role must be created first")
	}
	if err != nil {
		return "", fmt.Errorf("service/directory: resolving role: %w", err)
	}
	return id, nil
}

// List returns members matching query on name, last name, email or code,
// newest first.
func (s *DirectoryService) List(ctx context.Context, query string) ([]Person, error) {
	roleID, err := s.roleID(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.deps.Users.List(ctx, repository.UserFilter{RoleID: roleID, Query: strings.TrimSpace(query)})
	if err != nil {
		return nil, fmt.Errorf("service/directory: listing %ss: %w", s.kind.resource, err)
	}
	return s.views(ctx, users...)
}

// Get returns one member. Users with another role are reported as not found.
func (s *DirectoryService) Get(ctx context.Context, id string) (*Person, error) {
	u, err := s.member(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, u)
}

func (s *DirectoryService) Create(ctx context.Context, in PersonInput) (*Person, error) {
	roleID, err := s.roleID(ctx)
	if err != nil {
		return nil, err
	}

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" || in.CI == 0 || (s.kind.lastNameRequired && in.LastName == "") {
		return nil, apperror.ValidationFailed("", s.requiredFields())
	}
	if err := validateCI(in.CI); err != nil {
		return nil, err
	}
	if !s.kind.semesters {
		in.SemesterID = ""
	}
	aff, err := s.affiliation(ctx, in.FacultyID, in.CareerID, in.SemesterID)
	if err != nil {
		return nil, err
	}
	subjectIDs, err := s.checkSubjects(ctx, in.SubjectIDs)
	if err != nil {
		return nil, err
	}

	password := in.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := s.deps.Passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	u := &model.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        strings.TrimSpace(in.Phone),
		CI:           in.CI,
		Email:        s.email(in.Email, in.FirstName, in.LastName),
		PasswordHash: hash,
		RoleID:       roleID,
		FacultyID:    in.FacultyID,
		CareerID:     in.CareerID,
		SemesterID:   in.SemesterID,
		Code:         personCode(in.CI, aff.career, aff.faculty),
		Active:       active,
	}
	if err := s.deps.Users.Create(ctx, u); err != nil {
		return nil, conflictAsTaken(err)
	}
	if len(subjectIDs) > 0 {
		if err := s.deps.Assignments.Replace(ctx, u.ID, subjectIDs); err != nil {
			return nil, fmt.Errorf("service/directory: assigning subjects: %w", err)
		}
	}

	s.deps.Logger.Info(s.kind.resource+" created", slog.String("id", u.ID), slog.String("email", u.Email))
	return s.view(ctx, u)
}

// Update applies p. A changed CI, career or faculty recomputes the code. A
// name change regenerates the email, except in the director directory, which
// only touches the email when p.Email is set. Moving a student to another
// career without naming a semester clears the semester.
func (s *DirectoryService) Update(ctx context.Context, id string, p PersonPatch) (*Person, error) {
	u, err := s.member(ctx, id)
	if err != nil {
		return nil, err
	}

	renamed := false
	if p.FirstName != nil {
		n := strings.TrimSpace(*p.FirstName)
		if n == "" {
			return nil, apperror.ValidationFailed("nombre", "nombre must not be empty")
		}
		renamed = renamed || n != u.FirstName
		u.FirstName = n
	}
	if p.LastName != nil {
		n := strings.TrimSpace(*p.LastName)
		if n == "" && s.kind.lastNameRequired {
			return nil, apperror.ValidationFailed("apellido", "apellido must not be empty")
		}
		renamed = renamed || n != u.LastName
		u.LastName = n
	}
	setString(&u.Phone, p.Phone)

	recode := false
	if p.CI != nil {
		if err := validateCI(*p.CI); err != nil {
			return nil, err
		}
		recode = recode || *p.CI != u.CI
		u.CI = *p.CI
	}
	if p.FacultyID != nil {
		recode = recode || *p.FacultyID != u.FacultyID
		u.FacultyID = *p.FacultyID
	}
	if p.CareerID != nil && *p.CareerID != u.CareerID {
		recode = true
		u.CareerID = *p.CareerID
		u.SemesterID = ""
	}
	if p.SemesterID != nil && s.kind.semesters {
		u.SemesterID = *p.SemesterID
	}

	aff, err := s.affiliation(ctx, u.FacultyID, u.CareerID, u.SemesterID)
	if err != nil {
		return nil, err
	}
	if recode {
		u.Code = personCode(u.CI, aff.career, aff.faculty)
	}

	switch {
	case s.kind.keepsEmail && p.Email != nil:
		u.Email = s.email(*p.Email, u.FirstName, u.LastName)
	case !s.kind.keepsEmail && renamed:
		u.Email = s.email("", u.FirstName, u.LastName)
	}
	if p.Active != nil {
		u.Active = *p.Active
	}

	var subjectIDs []string
	if p.SubjectIDs != nil {
		if subjectIDs, err = s.checkSubjects(ctx, p.SubjectIDs); err != nil {
			return nil, err
		}
	}
	var hash string
	if p.Password != nil && *p.Password != "" {
		if hash, err = s.deps.Passwords.Hash(*p.Password); err != nil {
			return nil, apperror.ValidationFailed("password", err.Error())
		}
	}

	if err := s.deps.Users.Update(ctx, u); err != nil {
		return nil, conflictAsTaken(err)
	}
	if hash != "" {
		if err := s.deps.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
			return nil, fmt.Errorf("service/directory: updating password: %w", err)
		}
	}
	if p.SubjectIDs != nil {
		if err := s.deps.Assignments.Replace(ctx, u.ID, subjectIDs); err != nil {
			return nil, fmt.Errorf("service/directory: assigning subjects: %w", err)
		}
	}

	s.deps.Logger.Info(s.kind.resource+" updated", slog.String("id", u.ID))
	return s.view(ctx, u)
}

// Delete removes a member together with its subject assignments.
func (s *DirectoryService) Delete(ctx context.Context, id string) error {
	if _, err := s.member(ctx, id); err != nil {
		return err
	}
	if err := s.deps.Users.Delete(ctx, id); err != nil {
		return err
	}
	s.deps.Logger.Info(s.kind.resource+" deleted", slog.String("id", id))
	return nil
}

// member loads a user and checks it has the directory's role.
func (s *DirectoryService) member(ctx context.Context, id string) (*model.User, error) {
	roleID, err := s.roleID(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.deps.Users.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound(s.kind.resource, id)
	}
	if err != nil {
		return nil, err
	}
	if u.RoleID != roleID {
		return nil, apperror.NotFound(s.kind.resource, id)
	}
	return u, nil
}

func (s *DirectoryService) requiredFields() string {
	if s.kind.lastNameRequired {
		return "nombre, apellido and ci are required"
	}
	return "nombre and ci are required"
}

func (s *DirectoryService) email(given, firstName, lastName string) string {
	given = strings.TrimSpace(given)
	if s.kind.keepsEmail && given != "" && (EmailPolicy{Domain: s.deps.Domain}).inDomain(given) {
		return strings.ToLower(given)
	}
	return InstitutionalEmail(s.deps.EmailPrefix, firstName, lastName, s.deps.Domain)
}

type affiliation struct {
	faculty  *model.Faculty
	career   *model.Career
	semester *model.Semester
}

// affiliation loads the referenced faculty, career and semester. Unknown ids
// and a semester of another career are validation errors.
func (s *DirectoryService) affiliation(ctx context.Context, facultyID, careerID, semesterID string) (affiliation, error) {
	var (
		a   affiliation
		err error
	)
	if facultyID != "" {
		a.faculty, err = s.deps.Faculties.GetByID(ctx, facultyID)
		if errors.Is(err, apperror.ErrNotFound) {
			return a, apperror.ValidationFailed("idFacultad", "the given faculty does not exist")
		}
		if err != nil {
			return a, fmt.Errorf("service/directory: loading faculty: %w", err)
		}
	}
	if careerID != "" {
		a.career, err = s.deps.Careers.GetByID(ctx, careerID)
		if errors.Is(err, apperror.ErrNotFound) {
			return a, apperror.ValidationFailed("idCarrera", "the given career does not exist")
		}
		if err != nil {
			return a, fmt.Errorf("service/directory: loading career: %w", err)
		}
	}
	if semesterID != "" {
		a.semester, err = s.deps.Semesters.GetByID(ctx, semesterID)
		if errors.Is(err, apperror.ErrNotFound) {
			return a, apperror.ValidationFailed("semestreId", "the given semester does not exist")
		}
		if err != nil {
			return a, fmt.Errorf("service/directory: loading semester: %w", err)
		}
		if careerID != "" && a.semester.CareerID != careerID {
			return a, apperror.ValidationFailed("semestreId", "the semester does not belong to the selected career")
		}
	}
	return a, nil
}

// checkSubjects drops blanks and duplicates and verifies every id exists.
func (s *DirectoryService) checkSubjects(ctx context.Context, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		_, err := s.deps.Subjects.GetByID(ctx, id)
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("materiaIds", "subject "+id+" does not exist")
		}
		if err != nil {
			return nil, fmt.Errorf("service/directory: loading subject: %w", err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *DirectoryService) view(ctx context.Context, u *model.User) (*Person, error) {
	out, err := s.views(ctx, *u)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// views renders users with their faculty, career, semester and subject
// names. Each lookup table is read once per call.
func (s *DirectoryService) views(ctx context.Context, users ...model.User) ([]Person, error) {
	fs, err := s.deps.Faculties.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/directory: listing faculties: %w", err)
	}
	cs, err := s.deps.Careers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/directory: listing careers: %w", err)
	}
	faculties := make(map[string]string, len(fs))
	for _, f := range fs {
		faculties[f.ID] = f.Name
	}
	careers := make(map[string]model.Career, len(cs))
	for _, c := range cs {
		careers[c.ID] = c
	}

	semesters := map[string]string{}
	if s.kind.semesters {
		ss, err := s.deps.Semesters.List(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("service/directory: listing semesters: %w", err)
		}
		for _, sem := range ss {
			semesters[sem.ID] = sem.Label
		}
	}

	ids := make([]string, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	subjects, err := s.deps.Assignments.SubjectsByUser(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("service/directory: listing subjects: %w", err)
	}

	out := make([]Person, 0, len(users))
	for i := range users {
		p := personView(&users[i], faculties, careers)
		p.Semester = semesters[p.SemesterID]
		for _, sub := range subjects[p.ID] {
			p.Subjects = append(p.Subjects, SubjectRef{ID: sub.ID, Name: sub.Name})
		}
		out = append(out, p)
	}
	return out, nil
}

func personCode(ci int64, career *model.Career, faculty *model.Faculty) string {
	prefix := ""
	switch {
	case career != nil && career.Abbreviation != "":
		prefix = career.Abbreviation
	case career != nil:
		prefix = Abbreviation(career.Name)
	case faculty != nil:
		prefix = Abbreviation(faculty.Name)
	default:
		prefix = Abbreviation("")
	}
	return prefix + strconv.FormatInt(ci, 10)
}

// personView falls back to the career's faculty for the department when the
// user has no faculty of its own.
func personView(u *model.User, faculties map[string]string, careers map[string]model.Career) Person {
	career, hasCareer := careers[u.CareerID]
	department := faculties[u.FacultyID]
	if department == "" && hasCareer {
		department = faculties[career.FacultyID]
	}

	code := u.Code
	if code == "" {
		switch {
		case hasCareer && career.Abbreviation != "":
			code = career.Abbreviation
		case hasCareer:
			code = Abbreviation(career.Name)
		default:
			code = Abbreviation(department)
		}
		code += strconv.FormatInt(u.CI, 10)
	}

	return Person{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Phone:      u.Phone,
		CI:         u.CI,
		Department: department,
		Specialty:  career.Name,
		Code:       code,
		FacultyID:  u.FacultyID,
		CareerID:   u.CareerID,
		SemesterID: u.SemesterID,
		Subjects:   []SubjectRef{},
		Active:     u.Active,
	}
}

func conflictAsTaken(err error) error {
	if errors.Is(err, apperror.ErrConflict) {
		return apperror.Conflict("email or code already exists")
	}
	return err
}
