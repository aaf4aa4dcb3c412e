package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

var (
	_ repository.RoleRepository    = (*RoleDB)(nil)
	_ repository.FacultyRepository = (*FacultyDB)(nil)
	_ repository.CareerRepository  = (*CareerDB)(nil)
	_ repository.SubjectRepository = (*SubjectDB)(nil)
)

// RoleDB reads the seeded roles table.
type RoleDB struct {
	conn *sql.DB
}

// GetByName matches case-insensitively.
func (db *RoleDB) GetByName(ctx context.Context, name string) (*model.Role, error) {
	var r model.Role
	err := db.conn.QueryRowContext(ctx, `SELECT id, name FROM roles WHERE name = ?`, name).Scan(&r.ID, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("role", name)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting role %s: %w", name, err)
	}
	return &r, nil
}

func (db *RoleDB) List(ctx context.Context) ([]model.Role, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing roles: %w", err)
	}
	defer rows.Close()

	out := []model.Role{}
	for rows.Next() {
		var r model.Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning role: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FacultyDB is the faculties store.
type FacultyDB struct {
	conn *sql.DB
}

func (db *FacultyDB) Create(ctx context.Context, f *model.Faculty) error {
	f.ID = xid.New().String()
	f.CreatedAt = now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO faculties (id, name, theme, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.Name, themeValue(f.Theme), f.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: inserting faculty: %w", err)
	}
	return nil
}

func (db *FacultyDB) GetByID(ctx context.Context, id string) (*model.Faculty, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(theme, ''), created_at FROM faculties WHERE id = ?`, id)
	f, err := scanFaculty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("faculty", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting faculty %s: %w", id, err)
	}
	return f, nil
}

func (db *FacultyDB) List(ctx context.Context) ([]model.Faculty, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, COALESCE(theme, ''), created_at FROM faculties ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing faculties: %w", err)
	}
	defer rows.Close()

	out := []model.Faculty{}
	for rows.Next() {
		f, err := scanFaculty(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning faculty: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (db *FacultyDB) Update(ctx context.Context, f *model.Faculty) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE faculties SET name = ?, theme = ? WHERE id = ?`, f.Name, themeValue(f.Theme), f.ID)
	if err != nil {
		return fmt.Errorf("sqlite: updating faculty %s: %w", f.ID, err)
	}
	return requireAffected(res, "faculty", f.ID)
}

// Delete fails with apperror.ErrConflict while careers still reference the faculty.
func (db *FacultyDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM faculties WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.Conflict("faculty still has careers")
		}
		return fmt.Errorf("sqlite: deleting faculty %s: %w", id, err)
	}
	return requireAffected(res, "faculty", id)
}

func themeValue(theme json.RawMessage) any {
	if len(theme) == 0 || string(theme) == "null" {
		return nil
	}
	return string(theme)
}

func scanFaculty(s scanner) (*model.Faculty, error) {
	var (
		f     model.Faculty
		theme string
	)
	if err := s.Scan(&f.ID, &f.Name, &theme, &f.CreatedAt); err != nil {
		return nil, err
	}
	if theme != "" {
		f.Theme = json.RawMessage(theme)
	}
	return &f, nil
}

// CareerDB is the careers store. Reads join the faculty name.
type CareerDB struct {
	conn *sql.DB
}

const careerSelect = `SELECT c.id, c.name, c.abbreviation, c.faculty_id, COALESCE(f.name, '')
	FROM careers c LEFT JOIN faculties f ON f.id = c.faculty_id`

func (db *CareerDB) Create(ctx context.Context, c *model.Career) error {
	c.ID = xid.New().String()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO careers (id, name, abbreviation, faculty_id) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Abbreviation, c.FacultyID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("idFacultad", "faculty does not exist")
		}
		return fmt.Errorf("sqlite: inserting career: %w", err)
	}
	return nil
}

func (db *CareerDB) GetByID(ctx context.Context, id string) (*model.Career, error) {
	var c model.Career
	err := db.conn.QueryRowContext(ctx, careerSelect+` WHERE c.id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Abbreviation, &c.FacultyID, &c.FacultyName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("career", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting career %s: %w", id, err)
	}
	return &c, nil
}

func (db *CareerDB) List(ctx context.Context) ([]model.Career, error) {
	rows, err := db.conn.QueryContext(ctx, careerSelect+` ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing careers: %w", err)
	}
	defer rows.Close()

	out := []model.Career{}
	for rows.Next() {
		var c model.Career
		if err := rows.Scan(&c.ID, &c.Name, &c.Abbreviation, &c.FacultyID, &c.FacultyName); err != nil {
			return nil, fmt.Errorf("sqlite: scanning career: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *CareerDB) Update(ctx context.Context, c *model.Career) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE careers SET name = ?, abbreviation = ?, faculty_id = ? WHERE id = ?`,
		c.Name, c.Abbreviation, c.FacultyID, c.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("idFacultad", "faculty does not exist")
		}
		return fmt.Errorf("sqlite: updating career %s: %w", c.ID, err)
	}
	return requireAffected(res, "career", c.ID)
}

func (db *CareerDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM careers WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.Conflict("career still has subjects or semesters")
		}
		return fmt.Errorf("sqlite: deleting career %s: %w", id, err)
	}
	return requireAffected(res, "career", id)
}

// SubjectDB is the subjects store. Reads join the career for its name and
// faculty.
type SubjectDB struct {
	conn *sql.DB
}

const subjectSelect = `SELECT s.id, s.name, s.code, s.career_id, COALESCE(c.name, ''),
	COALESCE(c.faculty_id, ''), COALESCE(s.semester_id, '')
	FROM subjects s LEFT JOIN careers c ON c.id = s.career_id`

func (db *SubjectDB) Create(ctx context.Context, s *model.Subject) error {
	s.ID = xid.New().String()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO subjects (id, name, code, career_id, semester_id) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Code, s.CareerID, nullable(s.SemesterID))
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("subject code already exists")
		}
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("idCarrera", "career does not exist")
		}
		return fmt.Errorf("sqlite: inserting subject: %w", err)
	}
	return nil
}

func (db *SubjectDB) GetByID(ctx context.Context, id string) (*model.Subject, error) {
	row := db.conn.QueryRowContext(ctx, subjectSelect+` WHERE s.id = ?`, id)
	s, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("subject", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting subject %s: %w", id, err)
	}
	return s, nil
}

func (db *SubjectDB) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects WHERE code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking subject code: %w", err)
	}
	return n > 0, nil
}

func (db *SubjectDB) List(ctx context.Context, f repository.SubjectFilter) ([]model.Subject, error) {
	var (
		where []string
		args  []any
	)
	if f.CareerID != "" {
		where = append(where, "s.career_id = ?")
		args = append(args, f.CareerID)
	}
	if f.SemesterID != "" {
		where = append(where, "s.semester_id = ?")
		args = append(args, f.SemesterID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, "(LOWER(s.name) LIKE ? OR LOWER(s.code) LIKE ?)")
		args = append(args, like, like)
	}

	query := subjectSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY s.name`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing subjects: %w", err)
	}
	defer rows.Close()

	out := []model.Subject{}
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning subject: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (db *SubjectDB) Update(ctx context.Context, s *model.Subject) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE subjects SET name = ?, code = ?, career_id = ?, semester_id = ? WHERE id = ?`,
		s.Name, s.Code, s.CareerID, nullable(s.SemesterID), s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("subject code already exists")
		}
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("idCarrera", "career does not exist")
		}
		return fmt.Errorf("sqlite: updating subject %s: %w", s.ID, err)
	}
	return requireAffected(res, "subject", s.ID)
}

func (db *SubjectDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM subjects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting subject %s: %w", id, err)
	}
	return requireAffected(res, "subject", id)
}

func scanSubject(s scanner) (*model.Subject, error) {
	var sub model.Subject
	if err := s.Scan(&sub.ID, &sub.Name, &sub.Code, &sub.CareerID, &sub.CareerName,
		&sub.FacultyID, &sub.SemesterID); err != nil {
		return nil, err
	}
	return &sub, nil
}
