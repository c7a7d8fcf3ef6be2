package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"social-chat/internal/logger"
)

func setupAuthRouter(verifier *TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggingMiddleware(zap.NewNop()), AuthMiddleware(verifier))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":       c.GetInt64(UserIDKey),
			"request_id": logger.RequestID(c.Request.Context()),
		})
	})
	return r
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	token, err := verifier.Issue(42, "u-42", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	setupAuthRouter(verifier).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":42,"request_id":"req-1"}`, rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}

func TestAuthMiddlewareRejects(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	expired, err := verifier.Issue(42, "u-42", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewTokenVerifier("other").Issue(42, "u-42", time.Minute)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"expired":      "Bearer " + expired,
		"wrong secret": "Bearer " + foreign,
		"no user":      "Bearer " + noUser,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			setupAuthRouter(verifier).ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("abc"))
	assert.Empty(t, BearerToken(""))
}

func TestRecoveryReturns500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
