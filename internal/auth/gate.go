package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-budget-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-budget-go/pkg/utilities"
)

const (
	msgUnauthenticated = "You must be logged in to do that"
	msgIntegrity       = "Something went wrong!"
	msgInternal        = "Sorry, something went wrong."
)

// TokenResolver maps a session token to its owner.
type TokenResolver interface {
	GetUserID(ctx context.Context, token string) (int64, bool, error)
}

// UserLookup loads a user by id, returning user.ErrUserNotFound when absent.
type UserLookup interface {
	Get(ctx context.Context, id int64) (*entity.User, error)
}

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

// Gate guards protected routes behind a valid session cookie.
type Gate struct {
	tokens  TokenResolver
	users   UserLookup
	cookies Cookies
	logger  *zap.SugaredLogger
}

func NewGate(tokens TokenResolver, users UserLookup, cookies Cookies, logger *zap.SugaredLogger) *Gate {
	return &Gate{tokens: tokens, users: users, cookies: cookies, logger: logger}
}

// Require wraps next so it only runs for requests carrying a live session.
// Resolution is never cached: each request re-reads the token and the user.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(CookieName)
		if err != nil {
			utilities.WriteError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		token := ck.Value

		userID, ok, err := g.tokens.GetUserID(r.Context(), token)
		if err != nil {
			g.logger.Errorw("token lookup failed", "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		if !ok {
			g.cookies.Clear(w)
			utilities.WriteError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}

		u, err := g.users.Get(r.Context(), userID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				g.logger.Errorw("session token references missing user", "user_id", userID)
				g.cookies.Clear(w)
				utilities.WriteError(w, http.StatusInternalServerError, msgIntegrity)
				return
			}
			g.logger.Errorw("user lookup failed", "user_id", userID, "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, msgInternal)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), u, token)))
	})
}

// RequireFunc is Require for a plain handler function.
func (g *Gate) RequireFunc(fn http.HandlerFunc) http.Handler {
	return g.Require(fn)
}

// UserFromContext returns the user attached by Require.
func UserFromContext(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(userKey).(*entity.User)
	return u, ok
}

// TokenFromContext returns the raw session token attached by Require.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok
}

// WithSession attaches a user and token the same way Require does.
func WithSession(ctx context.Context, u *entity.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return context.WithValue(ctx, tokenKey, token)
}
