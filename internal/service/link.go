package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/auth"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
	"github.com/Ross11547/Automatizacion/internal/metrics"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

// OAuthProvider is the authorization-code half of the GitHub OAuth App.
// *auth.GitHubProvider implements it.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// LinkStateCodec encodes and verifies the OAuth state. *auth.TokenService
// implements it.
type LinkStateCodec interface {
	EncodeLinkState(st auth.LinkState) (string, error)
	DecodeLinkState(raw string) (*auth.LinkState, error)
}

// InviteTaskName labels the post-link invitation task in logs and metrics.
const InviteTaskName = "invite-personal"

// LinkService links GitHub accounts to users through the OAuth App.
type LinkService struct {
	states     LinkStateCodec
	provider   OAuthProvider
	github     githubapi.Client
	users      repository.UserRepository
	creds      repository.CredentialRepository
	inviter    *InviteService
	dispatcher Dispatcher
	policy     EmailPolicy
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type LinkServiceDeps struct {
	States     LinkStateCodec
	Provider   OAuthProvider
	GitHub     githubapi.Client
	Users      repository.UserRepository
	Creds      repository.CredentialRepository
	Inviter    *InviteService
	Dispatcher Dispatcher
	Policy     EmailPolicy
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func NewLinkService(d LinkServiceDeps) *LinkService {
	return &LinkService{
		states:     d.States,
		provider:   d.Provider,
		github:     d.GitHub,
		users:      d.Users,
		creds:      d.Creds,
		inviter:    d.Inviter,
		dispatcher: d.Dispatcher,
		policy:     d.Policy,
		metrics:    d.Metrics,
		logger:     d.Logger,
	}
}

// StartURL returns the GitHub authorize URL for filling slot intent. identity
// is the caller's session token; it travels inside the signed state.
func (s *LinkService) StartURL(identity string, intent model.AccountType) (string, error) {
	if !intent.Valid() {
		return "", apperror.ValidationFailed("type", "type must be INSTITUTIONAL or PERSONAL")
	}
	state, err := s.states.EncodeLinkState(auth.LinkState{Identity: identity, Intent: intent})
	if err != nil {
		return "", fmt.Errorf("service/link: encoding state: %w", err)
	}
	return s.provider.AuthURL(state), nil
}

// Callback is what GitHub sends back to the OAuth redirect URI.
type Callback struct {
	Code  string
	State string
	// Error is set when the user denied the authorization.
	Error            string
	ErrorDescription string
}

// Complete finishes a link. The user and slot come only from the state. A
// denial, a bad state or a rejected email comes back as an *apperror.AppError
// whose message can be shown to the user; anything else is unexpected.
func (s *LinkService) Complete(ctx context.Context, cb Callback) (*model.Credential, error) {
	cred, intent, err := s.complete(ctx, cb)
	s.metrics.RecordLink(string(intent), err == nil)
	if err != nil {
		return nil, err
	}

	userID := cred.UserID
	s.dispatcher.Dispatch(InviteTaskName, func(ctx context.Context) error {
		report, err := s.inviter.InvitePersonal(ctx, userID)
		if errors.Is(err, apperror.ErrMissingPersonalLink) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d of %d invitations failed", len(report.Failed), len(report.Failed)+len(report.Invited))
		}
		return nil
	})
	return cred, nil
}

func (s *LinkService) complete(ctx context.Context, cb Callback) (*model.Credential, model.AccountType, error) {
	if cb.Error != "" {
		msg := cb.ErrorDescription
		if msg == "" {
			msg = cb.Error
		}
		return nil, "", apperror.LinkDenied("GitHub authorization was denied: " + msg)
	}

	st, err := s.states.DecodeLinkState(cb.State)
	if err != nil {
		return nil, "", apperror.LinkDenied("no authenticated user")
	}
	user, err := s.users.GetByID(ctx, st.UserID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, st.Intent, apperror.LinkDenied("no authenticated user")
	}
	if err != nil {
		return nil, st.Intent, fmt.Errorf("service/link: loading user: %w", err)
	}
	if !st.Intent.Valid() {
		return nil, st.Intent, apperror.LinkDenied("invalid link type")
	}

	tok, err := s.provider.Exchange(ctx, cb.Code)
	if err != nil {
		return nil, st.Intent, fmt.Errorf("service/link: %w", err)
	}

	sess := s.github.ForToken(tok.AccessToken)
	account, err := sess.AuthenticatedUser(ctx)
	if err != nil {
		return nil, st.Intent, fmt.Errorf("service/link: reading GitHub profile: %w", err)
	}

	emails, err := sess.ListEmails(ctx)
	if err != nil {
		s.logger.Warn("listing GitHub emails failed, using profile email",
			slog.String("login", account.Login),
			slog.String("error", err.Error()),
		)
		emails = []githubapi.Email{{Address: account.Email}}
	}

	if st.Intent == model.AccountInstitutional {
		if err := s.policy.CheckInstitutional(emails); err != nil {
			return nil, st.Intent, err
		}
	}

	cred := &model.Credential{
		UserID:      user.ID,
		AccountType: st.Intent,
		GitHubID:    account.ID,
		Login:       account.Login,
		AvatarURL:   account.AvatarURL,
		Email:       s.policy.Resolve(emails),
		AccessToken: tok.AccessToken,
		TokenType:   "bearer",
		Scopes:      scopesOf(tok),
	}
	if err := s.creds.Upsert(ctx, cred); err != nil {
		return nil, st.Intent, fmt.Errorf("service/link: saving credential: %w", err)
	}

	s.logger.Info("GitHub account linked",
		slog.String("userID", user.ID),
		slog.String("type", string(st.Intent)),
		slog.String("login", account.Login),
	)
	return cred, st.Intent, nil
}

func scopesOf(tok *oauth2.Token) string {
	if v, ok := tok.Extra("scope").(string); ok {
		return v
	}
	return ""
}
