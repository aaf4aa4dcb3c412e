// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without CGo and tests run against ":memory:" databases.
//
// LAYOUT:
// DB owns the connection pool and the schema. Each table group is exposed as a
// small store (db.Users(), db.Credentials(), ...) implementing one interface
// from the repository package. All stores share the same *sql.DB.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/Ross11547/Automatizacion/internal/model"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath, applies pragmas and runs migrations.
//
// dbPath examples:
//   - "data/gestteam.db" → file-based database
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a different, empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	// Foreign keys are OFF by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Users() *UserDB                 { return &UserDB{conn: db.conn} }
func (db *DB) Roles() *RoleDB                 { return &RoleDB{conn: db.conn} }
func (db *DB) Credentials() *CredentialDB     { return &CredentialDB{conn: db.conn} }
func (db *DB) Installations() *InstallationDB { return &InstallationDB{conn: db.conn} }
func (db *DB) Projects() *ProjectDB           { return &ProjectDB{conn: db.conn} }
func (db *DB) Memberships() *MembershipDB     { return &MembershipDB{conn: db.conn} }
func (db *DB) Faculties() *FacultyDB          { return &FacultyDB{conn: db.conn} }
func (db *DB) Careers() *CareerDB             { return &CareerDB{conn: db.conn} }
func (db *DB) Subjects() *SubjectDB           { return &SubjectDB{conn: db.conn} }
func (db *DB) Semesters() *SemesterDB         { return &SemesterDB{conn: db.conn} }
func (db *DB) Schedules() *ScheduleDB         { return &ScheduleDB{conn: db.conn} }
func (db *DB) Assignments() *AssignmentDB     { return &AssignmentDB{conn: db.conn} }

// migrate creates the schema. Every statement is idempotent, so it runs on
// every start.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"roles", `
			CREATE TABLE IF NOT EXISTS roles (
				id   TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE COLLATE NOCASE
			);`},
		{"faculties", `
			CREATE TABLE IF NOT EXISTS faculties (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				theme      TEXT,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"careers", `
			CREATE TABLE IF NOT EXISTS careers (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				faculty_id TEXT NOT NULL REFERENCES faculties(id)
			);`},
		{"semesters", `
			CREATE TABLE IF NOT EXISTS semesters (
				id        TEXT PRIMARY KEY,
				number    INTEGER NOT NULL CHECK (number >= 1),
				label     TEXT NOT NULL,
				career_id TEXT NOT NULL REFERENCES careers(id),
				UNIQUE (career_id, number)
			);`},
		{"subjects", `
			CREATE TABLE IF NOT EXISTS subjects (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL,
				code        TEXT NOT NULL UNIQUE,
				career_id   TEXT NOT NULL REFERENCES careers(id),
				semester_id TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_subjects_career ON subjects(career_id);`},
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id         TEXT PRIMARY KEY,
				first_name TEXT NOT NULL,
				last_name  TEXT NOT NULL DEFAULT '',
				phone      TEXT NOT NULL DEFAULT '',
				ci         INTEGER NOT NULL,
				email      TEXT NOT NULL UNIQUE COLLATE NOCASE,
				password   TEXT NOT NULL DEFAULT '',
				role_id    TEXT NOT NULL REFERENCES roles(id),
				faculty_id TEXT REFERENCES faculties(id) ON DELETE SET NULL,
				career_id  TEXT REFERENCES careers(id) ON DELETE SET NULL,
				code       TEXT NOT NULL DEFAULT '',
				active     INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_users_role ON users(role_id);`},
		{"schedules", `
			CREATE TABLE IF NOT EXISTS schedules (
				id         TEXT PRIMARY KEY,
				subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
				day        TEXT NOT NULL,
				start_time TEXT NOT NULL,
				end_time   TEXT NOT NULL,
				room       TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_schedules_subject ON schedules(subject_id, day);`},
		{"user_subjects", `
			CREATE TABLE IF NOT EXISTS user_subjects (
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
				PRIMARY KEY (user_id, subject_id)
			);
			CREATE INDEX IF NOT EXISTS idx_user_subjects_subject ON user_subjects(subject_id);`},
		{"github_credentials", `
			CREATE TABLE IF NOT EXISTS github_credentials (
				id           TEXT PRIMARY KEY,
				user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				account_type TEXT NOT NULL CHECK (account_type IN ('INSTITUTIONAL', 'PERSONAL')),
				github_id    INTEGER NOT NULL,
				login        TEXT NOT NULL,
				avatar_url   TEXT NOT NULL DEFAULT '',
				email        TEXT NOT NULL DEFAULT '',
				access_token TEXT NOT NULL,
				token_type   TEXT NOT NULL DEFAULT 'bearer',
				scopes       TEXT NOT NULL DEFAULT '',
				created_at   DATETIME NOT NULL,
				updated_at   DATETIME NOT NULL,
				UNIQUE (user_id, account_type)
			);`},
		{"github_installations", `
			CREATE TABLE IF NOT EXISTS github_installations (
				id              TEXT PRIMARY KEY,
				user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				installation_id INTEGER NOT NULL UNIQUE,
				account_login   TEXT NOT NULL DEFAULT '',
				account_id      INTEGER NOT NULL DEFAULT 0,
				created_at      DATETIME NOT NULL,
				updated_at      DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_installations_user ON github_installations(user_id);`},
		{"projects", `
			CREATE TABLE IF NOT EXISTS projects (
				id           TEXT PRIMARY KEY,
				title        TEXT NOT NULL,
				subject_code TEXT NOT NULL DEFAULT '',
				group_type   TEXT NOT NULL CHECK (group_type IN ('GROUP', 'INDIVIDUAL')),
				repo_url     TEXT,
				created_at   DATETIME NOT NULL,
				updated_at   DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_projects_repo_url ON projects(repo_url);`},
		{"project_members", `
			CREATE TABLE IF NOT EXISTS project_members (
				project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				role       TEXT NOT NULL CHECK (role IN ('OWNER', 'MEMBER')),
				joined_at  DATETIME NOT NULL,
				PRIMARY KEY (project_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_members_user ON project_members(user_id);`},
	}

	for _, s := range steps {
		if _, err := db.conn.Exec(s.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", s.name, err)
		}
	}

	// Columns added after the initial schema.
	if err := db.addColumnIfNotExists("careers", "abbreviation", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding abbreviation to careers: %w", err)
	}
	if err := db.addColumnIfNotExists("users", "semester_id", "TEXT REFERENCES semesters(id) ON DELETE SET NULL"); err != nil {
		return fmt.Errorf("adding semester_id to users: %w", err)
	}

	return db.seedRoles()
}

func (db *DB) seedRoles() error {
	for _, name := range []string{model.RoleAdmin, model.RoleStudent, model.RoleDirector, model.RoleTeacher} {
		_, err := db.conn.Exec(
			`INSERT INTO roles (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
			xid.New().String(), name,
		)
		if err != nil {
			return fmt.Errorf("seeding role %s: %w", name, err)
		}
	}
	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition))
	return err
}

// now returns the current time in UTC. Stored timestamps sort lexically only
// if they share a zone.
func now() time.Time {
	return time.Now().UTC()
}

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
