package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"social-chat/internal/logger"
)

// UserIDKey is the gin context key holding the authenticated user id (int64).
const UserIDKey = "userID"

var ErrInvalidToken = errors.New("invalid token")

// Claims are the access token claims issued by the account service.
type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 access tokens.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses token and returns the user id it was issued for.
func (v *TokenVerifier) Verify(token string) (int64, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// Issue signs a token for userID. Used by tests and local tooling.
func (v *TokenVerifier) Issue(userID int64, ref string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ref,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// AuthMiddleware validates the bearer token and stores the user id on both
// the gin context and the request context.
func AuthMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization", "code": "UNAUTHORIZED"})
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "UNAUTHORIZED"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer x" value.
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
