package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/models"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/net/websocket"
)

// TokenClaims are the claims carried by a user access token. The subject is
// the user id.
type TokenClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 signed user access tokens.
type Authenticator struct {
	Secret []byte
}

// MintToken returns a signed access token for the given user.
func (a Authenticator) MintToken(u models.User, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	s, err := token.SignedString(a.Secret)
	if err != nil {
		return "", errors.New("signing token failed").Wrap(err)
	}
	return s, nil
}

// VerifyToken returns the user the given token was issued to.
func (a Authenticator) VerifyToken(token string) (models.User, error) {
	if token == "" {
		return models.User{}, errors.New("missing token").
			WithType(models.ErrTypeUnauthorized)
	}

	var claims TokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method").
				WithTag("alg", t.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil {
		return models.User{}, errors.New("invalid token").
			WithType(models.ErrTypeUnauthorized).
			Wrap(err)
	}

	u := models.User{
		ID:   strings.TrimSpace(claims.Subject),
		Name: claims.Name,
	}
	if u.ID == "" {
		return models.User{}, errors.New("token without subject").
			WithType(models.ErrTypeUnauthorized)
	}
	return u, nil
}

// GetTokenFromRequest returns the bearer token of the given request. The
// token query parameter is used when there is no authorization header, which
// is how browsers authenticate websockets.
func GetTokenFromRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return r.URL.Query().Get("token")
}

// VerifyAuthToken returns a websocket handshake that rejects connections
// without a valid token.
func VerifyAuthToken(a Authenticator) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		u, err := a.VerifyToken(GetTokenFromRequest(r))
		if err != nil {
			logs.WithTag("remote_addr", r.RemoteAddr).Debug(err)
			return err
		}

		*r = *r.WithContext(models.ContextWithUser(r.Context(), u))
		return nil
	}
}

// VerifyAuthTokenHandler serves the next handler with the verified user in
// the request context and responds with 401 otherwise.
func VerifyAuthTokenHandler(a Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.VerifyToken(GetTokenFromRequest(r))
		if err != nil {
			logs.WithTag("remote_addr", r.RemoteAddr).
				WithTag("path", r.URL.Path).
				Debug(err)
			Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(models.ContextWithUser(r.Context(), u)))
	})
}
