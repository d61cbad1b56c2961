package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// Header names trusted in header mode.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

var ErrMissingToken = errors.New("missing bearer token")

// Authenticator extracts the calling user from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (domain.User, error)
}

// Verifier validates a bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.User, error)
}

// HeaderAuthenticator trusts the X-User-ID and X-User-Name headers. It is
// only meant for local mode behind a trusted proxy or in tests.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (domain.User, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return domain.User{}, domain.ErrUnauthenticated
	}
	return domain.User{
		ID:          domain.UserID(id),
		DisplayName: strings.TrimSpace(r.Header.Get(HeaderUserName)),
	}, nil
}

// BearerAuthenticator verifies the Authorization bearer token. Browsers
// cannot set headers on websocket upgrades, so the access_token query
// parameter is accepted as well.
type BearerAuthenticator struct {
	Verifier Verifier
}

func (b BearerAuthenticator) Authenticate(r *http.Request) (domain.User, error) {
	token := bearerToken(r)
	if token == "" {
		return domain.User{}, ErrMissingToken
	}
	return b.Verifier.Verify(r.Context(), token)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("access_token")
}
