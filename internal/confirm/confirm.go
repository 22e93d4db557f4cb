// Package confirm issues and verifies the short-lived signed tokens that
// gate destructive first-sync operations.
package confirm

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// Audience separates confirmation tokens from any other token signed with
// the same key.
const Audience = "sync-first-overwrite"

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 900 * time.Second

// ErrInvalidToken covers every verification failure: bad signature,
// expiry, or a token issued for another user, client or mode.
var ErrInvalidToken = errors.New("invalid or expired confirmation token")

// Claims is the signed payload of a confirmation token.
type Claims struct {
	UserID      int64           `json:"user_id"`
	ClientID    string          `json:"client_id"`
	Mode        domain.SyncMode `json:"mode"`
	LocalCount  int             `json:"local_count"`
	ServerCount int             `json:"server_count"`
	TTL         int64           `json:"ttl"`
	jwt.RegisteredClaims
}

// Gate signs and verifies tokens with one HMAC key. Tokens are stateless
// and reusable until they expire.
type Gate struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewGate creates a gate signing with secret. A non-positive ttl means DefaultTTL.
func NewGate(secret string, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{key: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of g that reads time from now.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	c := *g
	c.now = now
	return &c
}

// TTL is the lifetime of issued tokens.
func (g *Gate) TTL() time.Duration { return g.ttl }

// Issue signs a token binding the user, client and mode. The counts are
// informational and echoed back on apply.
func (g *Gate) Issue(userID int64, clientID string, mode domain.SyncMode, localCount, serverCount int) (string, error) {
	issued := g.now()
	claims := Claims{
		UserID:      userID,
		ClientID:    clientID,
		Mode:        mode,
		LocalCount:  localCount,
		ServerCount: serverCount,
		TTL:         int64(g.ttl / time.Second),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(g.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
	if err != nil {
		return "", fmt.Errorf("sign confirmation token: %w", err)
	}
	return token, nil
}

// Verify checks the signature, the age against the configured TTL, and
// that the token was issued for exactly this user, client and mode.
func (g *Gate) Verify(token string, userID int64, clientID string, mode domain.SyncMode) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return g.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt == nil || g.now().Sub(claims.IssuedAt.Time) > g.ttl {
		return nil, ErrInvalidToken
	}
	if claims.UserID != userID || claims.ClientID != clientID || claims.Mode != mode {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
