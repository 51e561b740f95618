// Package identity defines the platform's caller-identity types: the JWT
// claims verified at the edge gateway and the trusted Principal internal
// services derive from gateway-injected headers.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Header names the gateway injects after verifying a bearer token. Internal
// services must trust these only on traffic arriving through the gateway's
// network boundary; they perform no signature verification of their own.
const (
	HeaderUserID   = "x-user-id"
	HeaderUserRole = "x-user-role"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("identity: invalid token")

// Claims is the bearer-token claim set issued to marketplace users.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Sign issues an HS256 token for the claims.
func Sign(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verify parses and validates a bearer token against the shared signing
// secret, rejecting any signing method other than HMAC.
func Verify(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId claim", ErrInvalidToken)
	}
	return claims, nil
}

// Principal is the trusted caller identity inside the platform boundary. It
// is constructed only by the gateway (from a verified token) or by
// FromHeaders (from the gateway's injected headers); services never read the
// raw headers anywhere else.
type Principal struct {
	UserID string
	Role   string
}

// FromHeaders is the single trusted-context parsing function. A missing
// x-user-id means the request is unauthenticated; callers must treat that as
// anonymous and never substitute a default.
func FromHeaders(h http.Header) (Principal, bool) {
	userID := h.Get(HeaderUserID)
	if userID == "" {
		return Principal{}, false
	}
	return Principal{UserID: userID, Role: h.Get(HeaderUserRole)}, true
}

// SetHeaders writes the principal into the outgoing header set.
func (p Principal) SetHeaders(h http.Header) {
	h.Set(HeaderUserID, p.UserID)
	if p.Role != "" {
		h.Set(HeaderUserRole, p.Role)
	}
}

// ClearHeaders removes any caller-supplied identity headers. The gateway
// calls this on every inbound request before deciding whether to inject
// verified values, so attacker-supplied headers can never pass through.
func ClearHeaders(h http.Header) {
	h.Del(HeaderUserID)
	h.Del(HeaderUserRole)
}
