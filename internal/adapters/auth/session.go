package auth

import (
	"context"

	"github.com/PabloGalante/rentchat/internal/domain"
)

// StaticSession is a SessionProvider for a user known up front, e.g. the
// authenticated caller of a request.
type StaticSession struct {
	User domain.User
}

func (s StaticSession) CurrentUser() (domain.User, bool) {
	return s.User, s.User.ID != ""
}

type ctxKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated user stored by WithUser.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(domain.User)
	return u, ok && u.ID != ""
}

// SessionFromContext returns a session bound to the user in ctx. The session
// is empty when ctx carries no user.
func SessionFromContext(ctx context.Context) StaticSession {
	u, _ := UserFromContext(ctx)
	return StaticSession{User: u}
}
