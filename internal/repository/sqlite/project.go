package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

var (
	_ repository.ProjectRepository    = (*ProjectDB)(nil)
	_ repository.MembershipRepository = (*MembershipDB)(nil)
)

// ProjectDB is the projects store.
type ProjectDB struct {
	conn *sql.DB
}

func (db *ProjectDB) Create(ctx context.Context, p *model.Project) error {
	t := now()
	p.ID = xid.New().String()
	p.CreatedAt = t
	p.UpdatedAt = t

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO projects (id, title, subject_code, group_type, repo_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.SubjectCode, string(p.GroupType), nullable(p.RepoURL), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting project: %w", err)
	}
	return nil
}

func (db *ProjectDB) GetByID(ctx context.Context, id string) (*model.Project, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	return p, nil
}

// GetByRepoURL returns the first project linked to url.
func (db *ProjectDB) GetByRepoURL(ctx context.Context, url string) (*model.Project, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects p WHERE p.repo_url = ? ORDER BY p.created_at LIMIT 1`, url)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("project with repository", url)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting project by repo url: %w", err)
	}
	return p, nil
}

func (db *ProjectDB) UpdateTitle(ctx context.Context, id, title string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET title = ?, updated_at = ? WHERE id = ?`, title, now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %s: %w", id, err)
	}
	return requireAffected(res, "project", id)
}

// SetRepoURL records the repository of a project. The first write wins: if a
// URL is already stored the row is left untouched and false is returned.
func (db *ProjectDB) SetRepoURL(ctx context.Context, id, url string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET repo_url = ?, updated_at = ?
		 WHERE id = ? AND (repo_url IS NULL OR repo_url = '')`,
		url, now(), id)
	if err != nil {
		return false, fmt.Errorf("sqlite: setting repo url of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}

const projectColumns = `p.id, p.title, p.subject_code, p.group_type, COALESCE(p.repo_url, ''), p.created_at, p.updated_at`

func scanProject(s scanner) (*model.Project, error) {
	var (
		p  model.Project
		gt string
	)
	if err := s.Scan(&p.ID, &p.Title, &p.SubjectCode, &gt, &p.RepoURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.GroupType = model.GroupType(gt)
	return &p, nil
}

// MembershipDB is the project_members store.
type MembershipDB struct {
	conn *sql.DB
}

func (db *MembershipDB) Add(ctx context.Context, m *model.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		m.ProjectID, m.UserID, string(m.Role), m.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user is already a project member")
		}
		if isForeignKeyViolation(err) {
			return apperror.NotFound("project or user", m.ProjectID+"/"+m.UserID)
		}
		return fmt.Errorf("sqlite: adding member: %w", err)
	}
	return nil
}

func (db *MembershipDB) Upsert(ctx context.Context, m *model.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (project_id, user_id) DO UPDATE SET role = excluded.role`,
		m.ProjectID, m.UserID, string(m.Role), m.JoinedAt)
	if err != nil {
		return fmt.Errorf("sqlite: upserting member: %w", err)
	}
	return nil
}

func (db *MembershipDB) Get(ctx context.Context, projectID, userID string) (*model.Membership, error) {
	var (
		m    model.Membership
		role string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT project_id, user_id, role, joined_at FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	).Scan(&m.ProjectID, &m.UserID, &role, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("membership", projectID+"/"+userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting membership: %w", err)
	}
	m.Role = model.MemberRole(role)
	return &m, nil
}

func (db *MembershipDB) ListByProject(ctx context.Context, projectID string) ([]model.Membership, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT project_id, user_id, role, joined_at FROM project_members WHERE project_id = ?
		 ORDER BY joined_at, rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of %s: %w", projectID, err)
	}
	defer rows.Close()

	out := []model.Membership{}
	for rows.Next() {
		var (
			m    model.Membership
			role string
		)
		if err := rows.Scan(&m.ProjectID, &m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning member: %w", err)
		}
		m.Role = model.MemberRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *MembershipDB) ListByUser(ctx context.Context, userID string) ([]model.ProjectMembership, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.project_id, m.user_id, m.role, m.joined_at, `+projectColumns+`
		 FROM project_members m JOIN projects p ON p.id = m.project_id
		 WHERE m.user_id = ?
		 ORDER BY m.joined_at DESC, m.rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing memberships of %s: %w", userID, err)
	}
	defer rows.Close()

	out := []model.ProjectMembership{}
	for rows.Next() {
		var (
			pm       model.ProjectMembership
			role, gt string
		)
		err := rows.Scan(&pm.ProjectID, &pm.UserID, &role, &pm.JoinedAt,
			&pm.Project.ID, &pm.Project.Title, &pm.Project.SubjectCode, &gt, &pm.Project.RepoURL,
			&pm.Project.CreatedAt, &pm.Project.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning membership: %w", err)
		}
		pm.Role = model.MemberRole(role)
		pm.Project.GroupType = model.GroupType(gt)
		out = append(out, pm)
	}
	return out, rows.Err()
}
