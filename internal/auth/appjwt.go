package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GitHub rejects App JWTs that live longer than ten minutes, and clocks
// drift, so the token is backdated a minute and expires after nine.
const (
	appTokenBackdate = 60 * time.Second
	appTokenLifetime = 9 * time.Minute
)

// AppTokenIssuer signs the RS256 JWT a GitHub App uses to authenticate as itself.
type AppTokenIssuer struct {
	appID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewAppTokenIssuer parses pemKey (PKCS#1 or PKCS#8) and returns an issuer for appID.
func NewAppTokenIssuer(appID int64, pemKey []byte) (*AppTokenIssuer, error) {
	if appID <= 0 {
		return nil, errors.New("auth: GitHub App id is required")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing GitHub App private key: %w", err)
	}
	return &AppTokenIssuer{
		appID: strconv.FormatInt(appID, 10),
		key:   key,
		now:   time.Now,
	}, nil
}

// LoadAppPrivateKey returns the PEM bytes from inline text or, when that is
// empty, from the file at path. Inline keys often come from a single-line
// environment variable, so literal "\n" sequences are expanded.
func LoadAppPrivateKey(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(strings.ReplaceAll(inline, `\n`, "\n")), nil
	}
	if path == "" {
		return nil, errors.New("auth: no GitHub App private key configured")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: reading GitHub App private key: %w", err)
	}
	return b, nil
}

// IssueAppToken returns a freshly signed App JWT.
func (a *AppTokenIssuer) IssueAppToken() (string, error) {
	now := a.now()
	c := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-appTokenBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appTokenLifetime)),
		Issuer:    a.appID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("auth: signing app token: %w", err)
	}
	return signed, nil
}

// AppID returns the numeric App id as a string.
func (a *AppTokenIssuer) AppID() string {
	return a.appID
}
