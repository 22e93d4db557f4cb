package mw

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	userSlotKey
)

func withUserSlot(ctx context.Context, slot *userSlot) context.Context {
	return context.WithValue(ctx, userSlotKey, slot)
}

// TokenResolver maps a token hash to its user. *sqlstore.Queries implements it.
type TokenResolver interface {
	UserIDForToken(ctx context.Context, tokenHash string, now time.Time) (int64, error)
}

// WithUserID returns a copy of ctx carrying the authenticated user.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the user set by Authenticate.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// Authenticate requires "Authorization: Bearer <token>" and resolves the
// token through its sha256 hash.
func Authenticate(tokens TokenResolver, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				deny(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := tokens.UserIDForToken(r.Context(), domain.HashAPIToken(token), domain.Now())
			if errors.Is(err, sqlstore.ErrNotFound) {
				deny(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if err != nil {
				log.Error("token lookup failed", logger.Error(err))
				deny(w, http.StatusInternalServerError, "internal error")
				return
			}

			if slot, ok := r.Context().Value(userSlotKey).(*userSlot); ok {
				slot.id = userID
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"detail":"` + msg + `"}`))
}
