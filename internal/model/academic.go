package model

import (
	"encoding/json"
	"time"
)

// Faculty groups careers. Theme is an opaque JSON object the front end uses
// for colors; it is stored and returned verbatim.
type Faculty struct {
	ID        string          `json:"id"`
	Name      string          `json:"nombre"`
	Theme     json.RawMessage `json:"theme,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Career struct {
	ID           string `json:"id"`
	Name         string `json:"nombre"`
	Abbreviation string `json:"sigla,omitempty"`
	FacultyID    string `json:"idFacultad"`
	FacultyName  string `json:"facultad,omitempty"`
}

// Subject is a course. Code is derived from Name and unique across subjects.
type Subject struct {
	ID         string `json:"id"`
	Name       string `json:"nombre"`
	Code       string `json:"codigo"`
	CareerID   string `json:"idCarrera"`
	CareerName string `json:"carrera,omitempty"`
	FacultyID  string `json:"idFacultad,omitempty"`
	SemesterID string `json:"semestreId,omitempty"`
}

// Semester is a numbered term of a career. Number is unique per career.
type Semester struct {
	ID         string `json:"id"`
	Number     int    `json:"numero"`
	Label      string `json:"etiqueta"`
	CareerID   string `json:"carreraId"`
	CareerName string `json:"carrera,omitempty"`
}

// Weekdays accepted by Schedule.Day, Monday first.
var Weekdays = []string{"LUNES", "MARTES", "MIERCOLES", "JUEVES", "VIERNES", "SABADO", "DOMINGO"}

// Schedule is a weekly class slot of a subject. Start and End are "HH:MM"
// and compare lexically.
type Schedule struct {
	ID          string `json:"id"`
	SubjectID   string `json:"materiaId"`
	SubjectName string `json:"materia,omitempty"`
	Day         string `json:"dia"`
	Start       string `json:"horaInicio"`
	End         string `json:"horaFin"`
	Room        string `json:"aula"`
}
