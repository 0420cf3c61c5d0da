package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ClaimsKey is the echo context key holding validated *Claims.
const ClaimsKey = "auth_claims"

var (
	ErrInvalidAccessKey = errors.New("invalid access key")
	ErrMissingToken     = errors.New("missing access token")
)

// Claims represents the claims in an access token
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// Manager issues and validates HS256 access tokens. A client trades the
// shared access key for a token once and sends it with every request.
type Manager struct {
	secret    []byte
	accessKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewManager creates a manager signing with secret.
func NewManager(secret, accessKey string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		secret:    []byte(secret),
		accessKey: []byte(accessKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Exchange checks the access key and issues a token for a new client id.
func (m *Manager) Exchange(accessKey string) (string, time.Time, error) {
	if len(m.accessKey) == 0 || subtle.ConstantTimeCompare([]byte(accessKey), m.accessKey) != 1 {
		return "", time.Time{}, ErrInvalidAccessKey
	}
	return m.Issue(uuid.NewString())
}

// Issue generates a token for clientID.
func (m *Manager) Issue(clientID string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := &Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate validates a token and returns its claims
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

// Middleware rejects requests without a valid token. The token is read
// from the Authorization header, or from the token query parameter for
// clients that cannot set headers (browsers opening a WebSocket).
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := extractToken(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			claims, err := m.Validate(tokenString)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token has expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}

func extractToken(c echo.Context) (string, error) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errors.New("invalid authorization format")
		}
		return parts[1], nil
	}
	if token := c.QueryParam("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}
