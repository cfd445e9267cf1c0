package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func init() {
	logs.SetLogger(func(e logs.Entry) {})
}

func TestAuthenticator(t *testing.T) {
	a := Authenticator{Secret: []byte("secret")}

	t.Run("minted token is verified", func(t *testing.T) {
		token, err := a.MintToken(models.User{ID: "u1", Name: "Ada"}, time.Minute)
		require.NoError(t, err)

		u, err := a.VerifyToken(token)
		require.NoError(t, err)
		require.Equal(t, models.User{ID: "u1", Name: "Ada"}, u)
	})

	t.Run("empty token is rejected", func(t *testing.T) {
		_, err := a.VerifyToken("")
		require.Error(t, err)
		require.Equal(t, models.ErrTypeUnauthorized, errors.Type(err))
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		token, err := Authenticator{Secret: []byte("other")}.MintToken(models.User{ID: "u1"}, time.Minute)
		require.NoError(t, err)

		_, err = a.VerifyToken(token)
		require.Error(t, err)
		require.Equal(t, models.ErrTypeUnauthorized, errors.Type(err))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token, err := a.MintToken(models.User{ID: "u1"}, -time.Minute)
		require.NoError(t, err)

		_, err = a.VerifyToken(token)
		require.Error(t, err)
	})

	t.Run("token without subject is rejected", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{Name: "nobody"}).
			SignedString(a.Secret)
		require.NoError(t, err)

		_, err = a.VerifyToken(token)
		require.Error(t, err)
	})

	t.Run("unsigned token is rejected", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, TokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = a.VerifyToken(token)
		require.Error(t, err)
	})
}

func TestGetTokenFromRequest(t *testing.T) {
	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/claims", nil)
		r.Header.Set("Authorization", "Bearer abc")
		require.Equal(t, "abc", GetTokenFromRequest(r))
	})

	t.Run("query parameter", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/feed?token=xyz", nil)
		require.Equal(t, "xyz", GetTokenFromRequest(r))
	})

	t.Run("none", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/feed", nil)
		require.Empty(t, GetTokenFromRequest(r))
	})
}

func TestVerifyAuthTokenHandler(t *testing.T) {
	a := Authenticator{Secret: []byte("secret")}

	var gotUser models.User
	h := VerifyAuthTokenHandler(a, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = models.UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing token responds with 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	})

	t.Run("valid token sets the user", func(t *testing.T) {
		token, err := a.MintToken(models.User{ID: "u2", Name: "Bob"}, time.Minute)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "u2", gotUser.ID)
	})
}

func TestHandleWithCORS(t *testing.T) {
	h := HandleWithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/claims", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claims", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	})
}

func TestHandleWithRateLimit(t *testing.T) {
	pool := &LimiterPool{RPS: 0.001, Burst: 2}
	h := HandleWithRateLimit(pool, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	post := func(remoteAddr string) int {
		r := httptest.NewRequest(http.MethodPost, "/claims", nil)
		r.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	t.Run("burst is allowed then limited", func(t *testing.T) {
		require.Equal(t, http.StatusOK, post("10.0.0.1:1000"))
		require.Equal(t, http.StatusOK, post("10.0.0.1:1001"))
		require.Equal(t, http.StatusTooManyRequests, post("10.0.0.1:1002"))
	})

	t.Run("other callers have their own bucket", func(t *testing.T) {
		require.Equal(t, http.StatusOK, post("10.0.0.2:1000"))
		require.Equal(t, 2, pool.Len())
	})

	t.Run("reads are not limited", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			r := httptest.NewRequest(http.MethodGet, "/claims", nil)
			r.RemoteAddr = "10.0.0.1:1000"
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("authenticated callers are keyed by user", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/claims", nil)
		r = r.WithContext(models.ContextWithUser(r.Context(), models.User{ID: "u1"}))
		require.Equal(t, "user:u1", rateLimitKey(r))
	})
}

func TestMetricsPathFormatter(t *testing.T) {
	require.Empty(t, MetricsPathFormatter(http.StatusNotFound, "/x"))
	require.Empty(t, MetricsPathFormatter(http.StatusBadRequest, "/x"))
	require.Equal(t, "/claims", MetricsPathFormatter(http.StatusOK, "/claims"))
	require.Equal(t, "/claims/:id", MetricsPathFormatter(http.StatusOK, "/claims/4b1c"))
	require.Equal(t, "/maps/:mapID/cells", MetricsPathFormatter(http.StatusOK, "/maps/starter/cells"))
	require.Equal(t, "/maps/:mapID/cells/:index/reserve", MetricsPathFormatter(http.StatusConflict, "/maps/starter/cells/3/reserve"))
	require.Equal(t, "/maps/:mapID/claims/:id", MetricsPathFormatter(http.StatusOK, "/maps/starter/claims/x"))
	require.Equal(t, "/maps", MetricsPathFormatter(http.StatusOK, "/maps"))
}

func TestHandlers(t *testing.T) {
	t.Run("ready check", func(t *testing.T) {
		ready := false
		h := HandleReadyCheck(func() bool { return ready })

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		ready = true
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("version", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleVersion("v1.2.3").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
		require.Equal(t, "v1.2.3", rec.Body.String())
		require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	})

	t.Run("health check", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleHealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
