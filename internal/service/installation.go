package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/metrics"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// TokenVerifier resolves a session token to a user id. *auth.TokenService
// implements it.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

const appMisconfiguredMessage = "GitHub App 401: check GITHUB_APP_ID, the private key and that you installed the right App"

// InstallationService records GitHub App installations.
type InstallationService struct {
	tokens        TokenVerifier
	users         repository.UserRepository
	installations repository.InstallationRepository
	github        githubapi.Client
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewInstallationService(
	tokens TokenVerifier,
	users repository.UserRepository,
	installations repository.InstallationRepository,
	gh githubapi.Client,
	m *metrics.Metrics,
	logger *slog.Logger,
) *InstallationService {
	return &InstallationService{
		tokens:        tokens,
		users:         users,
		installations: installations,
		github:        gh,
		metrics:       m,
		logger:        logger,
	}
}

// InstallURL appends state to the App's public install URL.
func InstallURL(base, state string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "state=" + url.QueryEscape(state)
}

// Complete handles the post-install redirect. rawID is the installation_id
// query parameter and token the session token carried in state (or the
// fallback cookie).
func (s *InstallationService) Complete(ctx context.Context, rawID, token string) (*model.Installation, error) {
	inst, err := s.complete(ctx, rawID, token)
	s.metrics.RecordInstallation(err == nil)
	return inst, err
}

func (s *InstallationService) complete(ctx context.Context, rawID, token string) (*model.Installation, error) {
	if strings.TrimSpace(rawID) == "" {
		return nil, apperror.ValidationFailed("installation_id", "missing installation_id")
	}
	installationID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || installationID <= 0 {
		return nil, apperror.ValidationFailed("installation_id", "invalid installation_id")
	}
	if token == "" {
		return nil, apperror.Unauthenticated("not authenticated")
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperror.Unauthenticated("invalid or expired token")
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthenticated("invalid user")
	}
	if err != nil {
		return nil, fmt.Errorf("service/installation: loading user: %w", err)
	}

	info, err := s.github.Installation(ctx, installationID)
	if err != nil {
		s.logger.Error("fetching installation metadata failed",
			slog.Int64("installationID", installationID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.InstallationFetch(appMisconfiguredMessage, err)
	}

	inst := &model.Installation{
		UserID:         user.ID,
		InstallationID: installationID,
		AccountLogin:   info.AccountLogin,
		AccountID:      info.AccountID,
	}
	if err := s.installations.Upsert(ctx, inst); err != nil {
		return nil, fmt.Errorf("service/installation: saving installation: %w", err)
	}

	s.logger.Info("GitHub App installed",
		slog.String("userID", user.ID),
		slog.Int64("installationID", installationID),
		slog.String("account", info.AccountLogin),
	)
	return inst, nil
}

// Backfill refreshes the account of every installation of userID and returns
// the ids that were updated. Installations GitHub no longer reports are
// skipped.
func (s *InstallationService) Backfill(ctx context.Context, userID string) ([]int64, error) {
	installs, err := s.installations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/installation: listing installations: %w", err)
	}

	updated := []int64{}
	for _, inst := range installs {
		info, err := s.github.Installation(ctx, inst.InstallationID)
		if err != nil {
			s.logger.Warn("backfill: fetching installation failed",
				slog.Int64("installationID", inst.InstallationID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.installations.UpdateAccount(ctx, inst.InstallationID, info.AccountLogin, info.AccountID); err != nil {
			s.logger.Warn("backfill: updating installation failed",
				slog.Int64("installationID", inst.InstallationID),
				slog.String("error", err.Error()),
			)
			continue
		}
		updated = append(updated, inst.InstallationID)
	}
	return updated, nil
}
