package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey          contextKey = "user_id"
	UserNameKey        contextKey = "user_name"
	UserPermissionsKey contextKey = "user_permissions"
)

const DevUserID = "dev-user"

type Claims struct {
	jwt.RegisteredClaims
	Name        string       `json:"name,omitempty"`
	Permissions []Permission `json:"permissions"`
}

type JWTConfig struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
	// Skipper bypasses verification for public endpoints.
	Skipper func(echo.Context) bool
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	cfg JWTConfig
	now func() time.Time
}

func NewTokenIssuer(cfg JWTConfig) *TokenIssuer {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// Issue returns a signed token for the user and its expiry.
func (t *TokenIssuer) Issue(userID, name string, perms []Permission) (string, time.Time, error) {
	if len(t.cfg.SigningKey) == 0 {
		return "", time.Time{}, errors.New("no signing key configured")
	}
	now := t.now()
	exp := now.Add(t.cfg.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name:        name,
		Permissions: perms,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies tokenStr and returns its claims.
func (t *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.cfg.SigningKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// tokenFromRequest reads a bearer token, or the access_token query
// parameter browsers use for websocket upgrades.
func tokenFromRequest(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if q := c.QueryParam("access_token"); q != "" {
			return q, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return parts[1], nil
}

func JWTMiddleware(issuer *TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if issuer.cfg.Skipper != nil && issuer.cfg.Skipper(c) {
				return next(c)
			}
			tokenStr, err := tokenFromRequest(c)
			if err != nil {
				return err
			}
			claims, err := issuer.Parse(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			setIdentity(c, claims.Subject, claims.Name, claims.Permissions)
			return next(c)
		}
	}
}

// DevAuthMiddleware treats every request as an administrator holding all
// permissions.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			setIdentity(c, DevUserID, "Development User", AllPermissions())
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, userID, name string, perms []Permission) {
	c.Set("user_id", userID)
	ctx := WithIdentity(c.Request().Context(), userID, name, perms)
	c.SetRequest(c.Request().WithContext(ctx))
}

// WithIdentity returns ctx carrying the acting user.
func WithIdentity(ctx context.Context, userID, name string, perms []Permission) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserNameKey, name)
	return context.WithValue(ctx, UserPermissionsKey, perms)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func UserNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(UserNameKey).(string)
	return name
}

func PermissionsFromContext(ctx context.Context) []Permission {
	perms, _ := ctx.Value(UserPermissionsKey).([]Permission)
	return perms
}
