package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

func createTestCareer(t *testing.T, db *DB) (*model.Faculty, *model.Career) {
	t.Helper()
	ctx := context.Background()
	f := &model.Faculty{Name: "Facultad de Ingeniería"}
	if err := db.Faculties().Create(ctx, f); err != nil {
		t.Fatalf("create faculty: %v", err)
	}
	c := &model.Career{Name: "Ingeniería de Sistemas", Abbreviation: "SIS", FacultyID: f.ID}
	if err := db.Careers().Create(ctx, c); err != nil {
		t.Fatalf("create career: %v", err)
	}
	return f, c
}

func TestFaculty_ThemeRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	f := &model.Faculty{Name: "Salud", Theme: json.RawMessage(`{"primary":"#ff0000"}`)}
	if err := db.Faculties().Create(ctx, f); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, err := db.Faculties().GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if string(got.Theme) != `{"primary":"#ff0000"}` {
		t.Errorf("Theme = %s", got.Theme)
	}

	got.Theme = nil
	got.Name = "Ciencias de la Salud"
	if err := db.Faculties().Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	again, _ := db.Faculties().GetByID(ctx, f.ID)
	if again.Theme != nil || again.Name != "Ciencias de la Salud" {
		t.Errorf("after update = %+v", again)
	}
}

func TestFacultyDelete_WithCareers(t *testing.T) {
	db := newTestDB(t)
	f, _ := createTestCareer(t, db)

	if err := db.Faculties().Delete(context.Background(), f.ID); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Delete(in use) error = %v, want ErrConflict", err)
	}
}

func TestCareer_JoinsFaculty(t *testing.T) {
	db := newTestDB(t)
	_, c := createTestCareer(t, db)

	got, err := db.Careers().GetByID(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FacultyName != "Facultad de Ingeniería" || got.Abbreviation != "SIS" {
		t.Errorf("GetByID() = %+v", got)
	}

	bad := &model.Career{Name: "X", FacultyID: "missing"}
	if err := db.Careers().Create(context.Background(), bad); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Create(unknown faculty) error = %v, want ErrValidation", err)
	}
}

func TestSubject_CodeAndFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f, c := createTestCareer(t, db)

	s := &model.Subject{Name: "Teoría de la Computación", Code: "TCO", CareerID: c.ID}
	if err := db.Subjects().Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exists, err := db.Subjects().CodeExists(ctx, "TCO")
	if err != nil || !exists {
		t.Errorf("CodeExists(TCO) = %v, %v; want true", exists, err)
	}
	exists, _ = db.Subjects().CodeExists(ctx, "TCO2")
	if exists {
		t.Error("CodeExists(TCO2) = true, want false")
	}

	dup := &model.Subject{Name: "Other", Code: "TCO", CareerID: c.ID}
	if err := db.Subjects().Create(ctx, dup); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create(duplicate code) error = %v, want ErrConflict", err)
	}

	got, err := db.Subjects().GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FacultyID != f.ID || got.CareerName != c.Name {
		t.Errorf("GetByID() = %+v, want faculty %s", got, f.ID)
	}

	list, err := db.Subjects().List(ctx, repository.SubjectFilter{CareerID: c.ID, Query: "teor"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() = %d, want 1", len(list))
	}
	list, _ = db.Subjects().List(ctx, repository.SubjectFilter{CareerID: "other"})
	if len(list) != 0 {
		t.Errorf("List(other career) = %d, want 0", len(list))
	}
}

func TestSubjectDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, c := createTestCareer(t, db)
	s := &model.Subject{Name: "Redes", Code: "RED", CareerID: c.ID}
	if err := db.Subjects().Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := db.Subjects().Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := db.Subjects().Delete(ctx, s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete(again) error = %v, want ErrNotFound", err)
	}
}
