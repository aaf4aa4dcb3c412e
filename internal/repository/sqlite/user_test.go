package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	u := createTestUser(t, db, "ana.rojas@unifranz.edu.bo")
	if u.ID == "" {
		t.Error("Create() did not set ID")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}

	got, err := db.Users().GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != u.Email || got.CI != u.CI {
		t.Errorf("GetByID() = %+v, want email %q ci %d", got, u.Email, u.CI)
	}
	if got.RoleName != model.RoleStudent {
		t.Errorf("RoleName = %q, want %q", got.RoleName, model.RoleStudent)
	}
	if got.FacultyID != "" || got.CareerID != "" {
		t.Errorf("optional ids = %q/%q, want empty", got.FacultyID, got.CareerID)
	}
	if !got.Active {
		t.Error("Active = false, want true")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "dup@unifranz.edu.bo")

	u := &model.User{FirstName: "B", CI: 1, Email: "DUP@unifranz.edu.bo", RoleID: roleID(t, db, model.RoleStudent)}
	err := db.Users().Create(context.Background(), u)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create(duplicate) error = %v, want ErrConflict", err)
	}
}

func TestUserCreate_UnknownRole(t *testing.T) {
	db := newTestDB(t)

	u := &model.User{FirstName: "B", CI: 1, Email: "b@unifranz.edu.bo", RoleID: "nope"}
	err := db.Users().Create(context.Background(), u)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Create(unknown role) error = %v, want ErrValidation", err)
	}
}

func TestUserGetByEmail_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "case@unifranz.edu.bo")

	got, err := db.Users().GetByEmail(context.Background(), "CASE@UNIFRANZ.EDU.BO")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("GetByEmail() id = %s, want %s", got.ID, u.ID)
	}
}

func TestUserGet_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.Users().GetByID(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := db.Users().GetByEmail(context.Background(), "x@y.z"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUserList_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "first@unifranz.edu.bo")
	teacher := &model.User{
		FirstName: "Carlos",
		LastName:  "Pérez",
		CI:        7,
		Email:     "cbbe.carlos.perez@unifranz.edu.bo",
		RoleID:    roleID(t, db, model.RoleTeacher),
		Code:      "SIS7",
	}
	if err := db.Users().Create(ctx, teacher); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	all, err := db.Users().List(ctx, repository.UserFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List() = %d users, want 2", len(all))
	}
	if all[0].ID != teacher.ID {
		t.Errorf("List()[0] = %s, want newest %s", all[0].ID, teacher.ID)
	}

	byRole, err := db.Users().List(ctx, repository.UserFilter{RoleID: teacher.RoleID})
	if err != nil {
		t.Fatalf("List(role) error = %v", err)
	}
	if len(byRole) != 1 || byRole[0].ID != teacher.ID {
		t.Errorf("List(role) = %+v, want only the teacher", byRole)
	}

	byQuery, err := db.Users().List(ctx, repository.UserFilter{Query: "sis7"})
	if err != nil {
		t.Fatalf("List(query) error = %v", err)
	}
	if len(byQuery) != 1 {
		t.Errorf("List(query) = %d users, want 1", len(byQuery))
	}

	none, err := db.Users().List(ctx, repository.UserFilter{Query: "zzz"})
	if err != nil {
		t.Fatalf("List(no match) error = %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("List(no match) = %#v, want empty non-nil slice", none)
	}
}

func TestUserUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "upd@unifranz.edu.bo")
	u.PasswordHash = "hash-1"
	if err := db.Users().UpdatePassword(ctx, u.ID, "hash-1"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	u.Phone = "77712345"
	u.PasswordHash = "ignored"
	if err := db.Users().Update(ctx, u); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := db.Users().GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Phone != "77712345" {
		t.Errorf("Phone = %q, want 77712345", got.Phone)
	}
	if got.PasswordHash != "hash-1" {
		t.Errorf("PasswordHash = %q, Update must not touch it", got.PasswordHash)
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)
	u := &model.User{ID: "missing", FirstName: "x", Email: "x@y.z", RoleID: roleID(t, db, model.RoleAdmin)}

	if err := db.Users().Update(context.Background(), u); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
	if err := db.Users().UpdatePassword(context.Background(), "missing", "h"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdatePassword(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUserDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "del@unifranz.edu.bo")

	if err := db.Users().Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.Users().GetByID(ctx, u.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID(after delete) error = %v, want ErrNotFound", err)
	}
	if err := db.Users().Delete(ctx, u.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete(again) error = %v, want ErrNotFound", err)
	}
}

func TestUserCountByRole(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "a@unifranz.edu.bo")
	createTestUser(t, db, "b@unifranz.edu.bo")
	teacher := &model.User{FirstName: "Luis", CI: 2, Email: "luis@unifranz.edu.bo", RoleID: roleID(t, db, model.RoleTeacher)}
	if err := db.Users().Create(ctx, teacher); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.Users().CountByRole(ctx)
	if err != nil {
		t.Fatalf("CountByRole() error = %v", err)
	}
	if got[roleID(t, db, model.RoleStudent)] != 2 || got[teacher.RoleID] != 1 {
		t.Errorf("CountByRole() = %v", got)
	}
	if n, ok := got[roleID(t, db, model.RoleDirector)]; ok {
		t.Errorf("director count = %d, want no entry", n)
	}
}

func TestUserCreatedSince(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	old := createTestUser(t, db, "old@unifranz.edu.bo")
	recent := createTestUser(t, db, "recent@unifranz.edu.bo")

	for id, at := range map[string]time.Time{
		old.ID:    time.Date(2019, time.March, 1, 12, 0, 0, 0, time.UTC),
		recent.ID: time.Date(2022, time.July, 9, 12, 0, 0, 0, time.UTC),
	} {
		if _, err := db.conn.ExecContext(ctx, `UPDATE users SET created_at = ? WHERE id = ?`, at, id); err != nil {
			t.Fatalf("backdating %s: %v", id, err)
		}
	}

	got, err := db.Users().CreatedSince(ctx, old.RoleID, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CreatedSince() error = %v", err)
	}
	if len(got) != 1 || got[0].Year() != 2022 {
		t.Errorf("CreatedSince(2020) = %v, want one time in 2022", got)
	}

	got, _ = db.Users().CreatedSince(ctx, roleID(t, db, model.RoleTeacher), time.Time{})
	if len(got) != 0 {
		t.Errorf("CreatedSince(teacher) = %v, want none", got)
	}
}
