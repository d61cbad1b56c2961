package auth_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PabloGalante/rentchat/internal/adapters/auth"
	"github.com/PabloGalante/rentchat/internal/domain"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	v, err := auth.NewHMACVerifier(secret)
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}
	tok := sign(t, jwt.MapClaims{
		"sub":  "alice",
		"name": "Alice",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, jwt.SigningMethodHS256, []byte(secret))

	u, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if u.ID != "alice" || u.DisplayName != "Alice" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestJWTVerifierRejectsBadTokens(t *testing.T) {
	v, _ := auth.NewHMACVerifier(secret)
	exp := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"wrong secret": sign(t, jwt.MapClaims{"sub": "alice", "exp": exp}, jwt.SigningMethodHS256, []byte("other")),
		"expired":      sign(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Hour).Unix()}, jwt.SigningMethodHS256, []byte(secret)),
		"no subject":   sign(t, jwt.MapClaims{"exp": exp}, jwt.SigningMethodHS256, []byte(secret)),
		"no expiry":    sign(t, jwt.MapClaims{"sub": "alice"}, jwt.SigningMethodHS256, []byte(secret)),
		"garbage":      "not-a-token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tok); !errors.Is(err, domain.ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestHeaderAuthenticator(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if _, err := (auth.HeaderAuthenticator{}).Authenticate(r); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated without headers, got %v", err)
	}

	r.Header.Set(auth.HeaderUserID, "bob")
	r.Header.Set(auth.HeaderUserName, "Bob")
	u, err := (auth.HeaderAuthenticator{}).Authenticate(r)
	if err != nil || u.ID != "bob" || u.DisplayName != "Bob" {
		t.Fatalf("unexpected result %+v, %v", u, err)
	}
}

func TestBearerAuthenticatorReadsHeaderAndQuery(t *testing.T) {
	v, _ := auth.NewHMACVerifier(secret)
	a := auth.BearerAuthenticator{Verifier: v}
	tok := sign(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256, []byte(secret))

	r := httptest.NewRequest("GET", "/", nil)
	if _, err := a.Authenticate(r); !errors.Is(err, auth.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}

	r.Header.Set("Authorization", "Bearer "+tok)
	if u, err := a.Authenticate(r); err != nil || u.ID != "alice" {
		t.Fatalf("header token: %+v, %v", u, err)
	}

	r = httptest.NewRequest("GET", "/?access_token="+tok, nil)
	if u, err := a.Authenticate(r); err != nil || u.ID != "alice" {
		t.Fatalf("query token: %+v, %v", u, err)
	}
}

func TestSessionFromContext(t *testing.T) {
	if _, ok := auth.SessionFromContext(context.Background()).CurrentUser(); ok {
		t.Fatalf("expected no user in an empty context")
	}

	ctx := auth.WithUser(context.Background(), domain.User{ID: "alice"})
	u, ok := auth.SessionFromContext(ctx).CurrentUser()
	if !ok || u.ID != "alice" {
		t.Fatalf("unexpected session user %+v", u)
	}
}
