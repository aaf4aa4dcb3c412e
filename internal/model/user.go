// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// User is an institutional account: student, teacher, director or admin.
//
// Optional foreign keys (FacultyID, CareerID, SemesterID) use the empty string as "none".
// The repository layer maps that to SQL NULL, so handlers and services never
// deal with pointers or sql.NullString.
//
// PasswordHash is never serialized. RoleName is filled by repository reads that
// join the roles table and is empty on writes.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"nombre"`
	LastName     string    `json:"apellido"`
	Phone        string    `json:"telefono"`
	CI           int64     `json:"ci"`
	Email        string    `json:"correo"`
	PasswordHash string    `json:"-"`
	RoleID       string    `json:"idRol"`
	RoleName     string    `json:"rol,omitempty"`
	FacultyID    string    `json:"idFacultad,omitempty"`
	CareerID     string    `json:"idCarrera,omitempty"`
	SemesterID   string    `json:"semestreId,omitempty"`
	Code         string    `json:"codigo,omitempty"`
	Active       bool      `json:"activo"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FullName joins first and last name, trimming the gap when either is empty.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Role names seeded by the initial migration.
const (
	RoleAdmin    = "Admin"
	RoleStudent  = "Estudiante"
	RoleDirector = "Director"
	RoleTeacher  = "Docente"
)

// Role is a named permission group. Names are unique case-insensitively.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"nombre"`
}
