package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testRSAKeyPEM(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return pem.EncodeToMemory(block), key
}

func TestIssueAppToken_Claims(t *testing.T) {
	pemKey, key := testRSAKeyPEM(t)
	issuer, err := NewAppTokenIssuer(123456, pemKey)
	if err != nil {
		t.Fatalf("NewAppTokenIssuer() error = %v", err)
	}
	fixed := time.Now().Truncate(time.Second)
	issuer.now = func() time.Time { return fixed }

	raw, err := issuer.IssueAppToken()
	if err != nil {
		t.Fatalf("IssueAppToken() error = %v", err)
	}

	var c jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		t.Fatalf("parsing app token: %v", err)
	}
	if !tok.Valid {
		t.Fatal("app token should be valid")
	}
	if c.Issuer != "123456" {
		t.Errorf("iss = %q, want 123456", c.Issuer)
	}
	if got := fixed.Sub(c.IssuedAt.Time); got != 60*time.Second {
		t.Errorf("iat backdate = %v, want 60s", got)
	}
	if got := c.ExpiresAt.Time.Sub(fixed); got != 9*time.Minute {
		t.Errorf("exp = now+%v, want now+9m", got)
	}
}

func TestNewAppTokenIssuer_Rejects(t *testing.T) {
	pemKey, _ := testRSAKeyPEM(t)

	if _, err := NewAppTokenIssuer(0, pemKey); err == nil {
		t.Error("NewAppTokenIssuer() should reject a zero app id")
	}
	if _, err := NewAppTokenIssuer(1, []byte("not a pem")); err == nil {
		t.Error("NewAppTokenIssuer() should reject a malformed key")
	}
}

func TestLoadAppPrivateKey(t *testing.T) {
	pemKey, _ := testRSAKeyPEM(t)

	t.Run("inline with escaped newlines", func(t *testing.T) {
		escaped := strings.ReplaceAll(string(pemKey), "\n", `\n`)
		got, err := LoadAppPrivateKey(escaped, "")
		if err != nil {
			t.Fatalf("LoadAppPrivateKey() error = %v", err)
		}
		if string(got) != string(pemKey) {
			t.Error("escaped newlines were not expanded")
		}
		if _, err := NewAppTokenIssuer(1, got); err != nil {
			t.Errorf("expanded key does not parse: %v", err)
		}
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.pem")
		if err := os.WriteFile(path, pemKey, 0o600); err != nil {
			t.Fatal(err)
		}
		got, err := LoadAppPrivateKey("", path)
		if err != nil {
			t.Fatalf("LoadAppPrivateKey() error = %v", err)
		}
		if string(got) != string(pemKey) {
			t.Error("file contents differ")
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		if _, err := LoadAppPrivateKey("", ""); err == nil {
			t.Error("LoadAppPrivateKey() should fail with no key")
		}
	})
}
