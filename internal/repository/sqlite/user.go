package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users store.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `u.id, u.first_name, u.last_name, u.phone, u.ci, u.email, u.password,
	u.role_id, COALESCE(r.name, ''), COALESCE(u.faculty_id, ''), COALESCE(u.career_id, ''),
	COALESCE(u.semester_id, ''), u.code, u.active, u.created_at, u.updated_at`

const userFrom = ` FROM users u LEFT JOIN roles r ON r.id = u.role_id`

// Create inserts a new user and sets its ID and timestamps.
// A duplicate email is reported as apperror.ErrConflict.
func (db *UserDB) Create(ctx context.Context, u *model.User) error {
	t := now()
	u.ID = xid.New().String()
	u.CreatedAt = t
	u.UpdatedAt = t

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, phone, ci, email, password, role_id,
		                    faculty_id, career_id, semester_id, code, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, u.Phone, u.CI, u.Email, u.PasswordHash, u.RoleID,
		nullable(u.FacultyID), nullable(u.CareerID), nullable(u.SemesterID), u.Code, u.Active,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email already registered")
		}
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("idRol", "role, faculty, career or semester does not exist")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", u.Email, err)
	}
	return nil
}

// GetByID retrieves a user by id. Returns apperror.ErrNotFound if absent.
func (db *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+userFrom+` WHERE u.id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail looks a user up by email, case-insensitively.
func (db *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+userFrom+` WHERE u.email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// List returns users matching f, newest first.
func (db *UserDB) List(ctx context.Context, f repository.UserFilter) ([]model.User, error) {
	var (
		where []string
		args  []any
	)
	if f.RoleID != "" {
		where = append(where, "u.role_id = ?")
		args = append(args, f.RoleID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, `(LOWER(u.first_name) LIKE ? OR LOWER(u.last_name) LIKE ?
			OR LOWER(u.email) LIKE ? OR LOWER(u.code) LIKE ?)`)
		args = append(args, like, like, like, like)
	}

	query := `SELECT ` + userColumns + userFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY u.created_at DESC, u.rowid DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Update overwrites every mutable column except the password.
func (db *UserDB) Update(ctx context.Context, u *model.User) error {
	u.UpdatedAt = now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, phone = ?, ci = ?, email = ?, role_id = ?,
		        faculty_id = ?, career_id = ?, semester_id = ?, code = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		u.FirstName, u.LastName, u.Phone, u.CI, u.Email, u.RoleID,
		nullable(u.FacultyID), nullable(u.CareerID), nullable(u.SemesterID), u.Code, u.Active,
		u.UpdatedAt, u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email already registered")
		}
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("idRol", "role, faculty, career or semester does not exist")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", u.ID, err)
	}
	return requireAffected(res, "user", u.ID)
}

func (db *UserDB) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`, hash, now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for %s: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

func (db *UserDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

func (db *UserDB) CountByRole(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT role_id, COUNT(*) FROM users GROUP BY role_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting users: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			roleID string
			n      int
		)
		if err := rows.Scan(&roleID, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user count: %w", err)
		}
		out[roleID] = n
	}
	return out, rows.Err()
}

func (db *UserDB) CreatedSince(ctx context.Context, roleID string, since time.Time) ([]time.Time, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT created_at FROM users WHERE role_id = ? AND created_at >= ? ORDER BY created_at`,
		roleID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing user creation times: %w", err)
	}
	defer rows.Close()

	out := []time.Time{}
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite: scanning creation time: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	err := s.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Phone, &u.CI, &u.Email, &u.PasswordHash,
		&u.RoleID, &u.RoleName, &u.FacultyID, &u.CareerID, &u.SemesterID,
		&u.Code, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
