package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testNow = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

func newTestVerifier(t *testing.T) (JWTVerifier, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg, err := NewJWTConfig("quadvote-auth", "quadvote-api", base64.StdEncoding.EncodeToString(pub))
	if err != nil {
		t.Fatalf("new jwt config: %v", err)
	}
	cfg.Now = func() time.Time { return testNow }
	return NewJWTVerifier(cfg), priv
}

func sign(t *testing.T, key ed25519.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    "quadvote-auth",
		Audience:  jwt.ClaimStrings{"quadvote-api"},
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
	}
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	verifier, key := newTestVerifier(t)
	identity, err := verifier.Authenticate(context.Background(), sign(t, key, validClaims()))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity != "alice" {
		t.Fatalf("identity = %q, want alice", identity)
	}
}

func TestJWTVerifierRejections(t *testing.T) {
	verifier, key := newTestVerifier(t)
	_, otherKey, _ := ed25519.GenerateKey(rand.Reader)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Second))
	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"other-api"}
	noSubject := validClaims()
	noSubject.Subject = ""
	notYet := validClaims()
	notYet.NotBefore = jwt.NewNumericDate(testNow.Add(time.Minute))

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", want: ErrInvalidToken},
		{name: "foreign key", token: sign(t, otherKey, validClaims()), want: ErrInvalidSignature},
		{name: "expired", token: sign(t, key, expired), want: ErrTokenExpired},
		{name: "issuer", token: sign(t, key, wrongIssuer), want: ErrClaimMismatch},
		{name: "audience", token: sign(t, key, wrongAudience), want: ErrClaimMismatch},
		{name: "subject", token: sign(t, key, noSubject), want: ErrInvalidToken},
		{name: "not before", token: sign(t, key, notYet), want: ErrInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := verifier.Authenticate(context.Background(), tc.token); !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestJWTVerifierRejectsHMACTokens(t *testing.T) {
	verifier, _ := newTestVerifier(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign hmac token: %v", err)
	}
	if _, err := verifier.Authenticate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for HS256, got %v", err)
	}
}

func TestNewJWTConfigValidation(t *testing.T) {
	if _, err := NewJWTConfig("", "aud", "key"); err == nil {
		t.Fatal("expected missing issuer error")
	}
	if _, err := NewJWTConfig("iss", "aud", base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Fatal("expected key size error")
	}
	if _, err := (JWTVerifier{}).Authenticate(context.Background(), "token"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestHeaderVerifier(t *testing.T) {
	identity, err := HeaderVerifier{}.Authenticate(context.Background(), " bob ")
	if err != nil || identity != "bob" {
		t.Fatalf("unexpected header identity %q (%v)", identity, err)
	}
	if _, err := (HeaderVerifier{}).Authenticate(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
}
