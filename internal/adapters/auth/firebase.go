package auth

import (
	"context"
	"fmt"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// FirebaseVerifier validates Firebase ID tokens, the session the mobile
// clients already hold.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

func NewFirebaseVerifier(client *firebaseauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (f *FirebaseVerifier) Verify(ctx context.Context, token string) (domain.User, error) {
	tok, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	name, _ := tok.Claims["name"].(string)
	return domain.User{ID: domain.UserID(tok.UID), DisplayName: name}, nil
}
