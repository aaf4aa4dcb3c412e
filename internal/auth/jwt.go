// Package auth issues and verifies the tokens that carry identity through the API
// and through the GitHub redirect chains.
//
// THREE TOKEN KINDS:
//
//	session   HS256 {uid, iat, exp, iss}         returned by POST /auth/login
//	state     HS256 {t, type, sub, iat, exp}     the OAuth "state" for account linking
//	app       RS256 {iat, exp, iss=<app id>}     GitHub App authentication (appjwt.go)
//
// Session and state tokens are compact JWS strings, so they survive being put in a
// URL query parameter and handed back by GitHub without any re-encoding.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Ross11547/Automatizacion/internal/model"
)

const (
	issuer = "gestteam"

	// DefaultSessionTTL is the lifetime of a login session token.
	DefaultSessionTTL = 24 * time.Hour

	// StateTTL bounds how long a user may take on GitHub's consent screen.
	StateTTL = 10 * time.Minute

	stateSubject = "github-link"
)

// ErrInvalidToken is returned for every verification failure. Expired,
// malformed and wrongly signed tokens are deliberately indistinguishable.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// TokenService signs and verifies HS256 session and state tokens.
type TokenService struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// A zero ttl selects DefaultSessionTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), sessionTTL: ttl, now: time.Now}, nil
}

// sessionClaims is the session payload. The user id travels in "uid" so clients
// that decode the token (the front end does) find it where they expect.
type sessionClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs a session token for userID valid for the configured TTL.
func (s *TokenService) IssueSessionToken(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.sessionTTL)
}

// GenerateWithDuration creates a session token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := s.now()

	c := sessionClaims{
		UID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}
	return s.sign(c)
}

// Verify parses and verifies a session token and returns the user id it carries.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid and the algorithm is HS256 (no "none", no RS/HS confusion)
//   - Token is not expired, and an expiry is present at all
//   - Issuer matches
func (s *TokenService) Verify(tokenStr string) (string, error) {
	var c sessionClaims
	if err := s.parse(tokenStr, &c); err != nil {
		return "", err
	}
	if c.UID == "" {
		return "", ErrInvalidToken
	}
	return c.UID, nil
}

// LinkState is the structured OAuth state for linking a GitHub account.
//
// Identity is the caller's session token, Intent the slot being filled. After
// DecodeLinkState, UserID holds the user the identity token resolved to.
type LinkState struct {
	Identity string
	Intent   model.AccountType
	UserID   string
}

type stateClaims struct {
	Identity string `json:"t"`
	Intent   string `json:"type"`
	jwt.RegisteredClaims
}

// IssueStateToken signs an arbitrary intent/identity pair with StateTTL.
// EncodeLinkState is the typed entry point; this one exists for callers that
// already hold the raw strings.
func (s *TokenService) IssueStateToken(identity, intent string) (string, error) {
	now := s.now()
	c := stateClaims{
		Identity: identity,
		Intent:   intent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   stateSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
			Issuer:    issuer,
		},
	}
	return s.sign(c)
}

// EncodeLinkState turns a LinkState into the opaque value sent as OAuth state.
func (s *TokenService) EncodeLinkState(st LinkState) (string, error) {
	return s.IssueStateToken(st.Identity, string(st.Intent))
}

// DecodeLinkState verifies the state token, then the identity token embedded in
// it, and returns the reconstructed LinkState.
//
// Intent is returned as sent; whether it names a valid slot is for the caller
// to decide, so that the two failures get different messages.
func (s *TokenService) DecodeLinkState(raw string) (*LinkState, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	var c stateClaims
	if err := s.parse(raw, &c); err != nil {
		return nil, err
	}
	if c.Subject != stateSubject || c.Identity == "" {
		return nil, ErrInvalidToken
	}

	uid, err := s.Verify(c.Identity)
	if err != nil {
		return nil, err
	}

	return &LinkState{
		Identity: c.Identity,
		Intent:   model.AccountType(c.Intent),
		UserID:   uid,
	}, nil
}

func (s *TokenService) sign(c jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenStr string, c jwt.Claims) error {
	if tokenStr == "" {
		return ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
