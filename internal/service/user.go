package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

var emailFormat = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const emailTaken = "email already registered"

// UserService manages user accounts.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{users: users, passwords: passwords, logger: logger}
}

// NewUser is the input of UserService.Create. Every field is required.
type NewUser struct {
	FirstName       string
	LastName        string
	Phone           string
	CI              int64
	Email           string
	Password        string
	ConfirmPassword string
	RoleID          string
	Active          bool
}

// UserPatch is a partial update; nil fields are left unchanged.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Phone     *string
	CI        *int64
	Email     *string
	Password  *string
	RoleID    *string
	FacultyID *string
	CareerID  *string
	Active    *bool
}

func (s *UserService) List(ctx context.Context, f repository.UserFilter) ([]model.User, error) {
	users, err := s.users.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// Create validates in and stores a new user with a bcrypt-hashed password.
// A taken email is a validation error, not a conflict.
func (s *UserService) Create(ctx context.Context, in NewUser) (*model.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)

	if in.FirstName == "" || in.LastName == "" || in.Phone == "" || in.Email == "" ||
		in.Password == "" || in.ConfirmPassword == "" || in.RoleID == "" {
		return nil, apperror.ValidationFailed("", "all fields are required")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperror.ValidationFailed("confirmaPassword", "passwords do not match")
	}
	if err := validateCI(in.CI); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, in.Email, ""); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		CI:           in.CI,
		Email:        in.Email,
		PasswordHash: hash,
		RoleID:       in.RoleID,
		Active:       in.Active,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, takenAsValidation(err)
	}

	s.logger.Info("user created", slog.String("id", u.ID), slog.String("email", u.Email))
	return u, nil
}

// Update applies p to the user id. A new password is hashed and stored
// separately from the profile columns.
func (s *UserService) Update(ctx context.Context, id string, p UserPatch) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if err := s.ensureEmailFree(ctx, email, u.ID); err != nil {
			return nil, err
		}
		u.Email = email
	}
	if p.CI != nil {
		if err := validateCI(*p.CI); err != nil {
			return nil, err
		}
		u.CI = *p.CI
	}
	setString(&u.FirstName, p.FirstName)
	setString(&u.LastName, p.LastName)
	setString(&u.Phone, p.Phone)
	setString(&u.RoleID, p.RoleID)
	setString(&u.FacultyID, p.FacultyID)
	setString(&u.CareerID, p.CareerID)
	if p.Active != nil {
		u.Active = *p.Active
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, takenAsValidation(err)
	}

	if p.Password != nil && *p.Password != "" {
		hash, err := s.hash(*p.Password)
		if err != nil {
			return nil, err
		}
		if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
			return nil, fmt.Errorf("service/user: storing password: %w", err)
		}
		u.PasswordHash = hash
	}

	return s.users.GetByID(ctx, u.ID)
}

// Delete removes the user and returns the deleted record.
func (s *UserService) Delete(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info("user deleted", slog.String("id", id))
	return u, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("service/user: checking email: %w", err)
	}
	if existing.ID != selfID {
		return apperror.ValidationFailed("correo", emailTaken)
	}
	return nil
}

func (s *UserService) hash(password string) (string, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return "", apperror.ValidationFailed("password", err.Error())
	}
	return hash, nil
}

func validateEmail(email string) error {
	if !emailFormat.MatchString(email) {
		return apperror.ValidationFailed("correo", "email must have a valid format")
	}
	return nil
}

func validateCI(ci int64) error {
	if ci <= 0 {
		return apperror.ValidationFailed("ci", "ci must be a valid positive number")
	}
	return nil
}

func takenAsValidation(err error) error {
	if errors.Is(err, apperror.ErrConflict) {
		return apperror.ValidationFailed("correo", emailTaken)
	}
	return err
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
