package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// JWTVerifier validates HS256 or RS256 tokens. The subject is the user id
// and the optional "name" claim the display name.
type JWTVerifier struct {
	alg    string
	pubKey *rsa.PublicKey
	secret []byte
}

// NewHMACVerifier verifies HS256 tokens signed with secret.
func NewHMACVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("hs256 secret required")
	}
	return &JWTVerifier{alg: jwt.SigningMethodHS256.Alg(), secret: []byte(secret)}, nil
}

// NewRSAVerifier verifies RS256 tokens against the PEM public key at path.
func NewRSAVerifier(path string) (*JWTVerifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pubkey: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse pubkey: %w", err)
	}
	return &JWTVerifier{alg: jwt.SigningMethodRS256.Alg(), pubKey: key}, nil
}

type claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (j *JWTVerifier) Verify(_ context.Context, token string) (domain.User, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{j.alg}), jwt.WithExpirationRequired())

	var c claims
	tok, err := parser.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if j.pubKey != nil {
			return j.pubKey, nil
		}
		return j.secret, nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	if !tok.Valid || c.Subject == "" {
		return domain.User{}, fmt.Errorf("%w: sub missing", domain.ErrUnauthenticated)
	}

	return domain.User{ID: domain.UserID(c.Subject), DisplayName: c.Name}, nil
}
