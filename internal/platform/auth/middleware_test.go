package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testKey = []byte("test-signing-key-with-32-bytes!!")

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer(JWTConfig{SigningKey: testKey, Issuer: "lims", TTL: time.Hour, Skipper: AuthSkipper})
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func expectStatus(t *testing.T, err error, want int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != want {
		t.Errorf("expected %d, got %d", want, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(newTestIssuer())(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(newTestIssuer())(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	issuer := newTestIssuer()
	token, exp, err := issuer.Issue("1061698378", "Admin", []Permission{PermResults, PermBilling})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expected expiry in the future, got %v", exp)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotUser, gotName string
	var gotPerms []Permission
	err = JWTMiddleware(issuer)(func(c echo.Context) error {
		ctx := c.Request().Context()
		gotUser = UserIDFromContext(ctx)
		gotName = UserNameFromContext(ctx)
		gotPerms = PermissionsFromContext(ctx)
		return c.String(http.StatusOK, "ok")
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUser != "1061698378" || gotName != "Admin" {
		t.Errorf("unexpected identity %q %q", gotUser, gotName)
	}
	if len(gotPerms) != 2 || gotPerms[0] != PermResults {
		t.Errorf("unexpected permissions %v", gotPerms)
	}
	if c.Get("user_id") != "1061698378" {
		t.Errorf("expected user_id on echo context, got %v", c.Get("user_id"))
	}
}

func TestJWTMiddleware_QueryToken(t *testing.T) {
	issuer := newTestIssuer()
	token, _, _ := issuer.Issue("u1", "", nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := JWTMiddleware(issuer)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	issuer := newTestIssuer()
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := issuer.Issue("u1", "", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	verifier := newTestIssuer()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	err = JWTMiddleware(verifier)(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	other := NewTokenIssuer(JWTConfig{SigningKey: []byte("another-signing-key-of-32-bytes!"), Issuer: "lims"})
	token, _, _ := other.Issue("u1", "", nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(newTestIssuer())(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "lims",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newTestIssuer().Parse(token); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}

func TestJWTMiddleware_SkipsPublicPath(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/auth/login")

	if err := JWTMiddleware(newTestIssuer())(okHandler)(c); err != nil {
		t.Fatalf("expected public path to pass, got %v", err)
	}
}

func TestTokenIssuer_NoKey(t *testing.T) {
	if _, _, err := NewTokenIssuer(JWTConfig{}).Issue("u1", "", nil); err == nil {
		t.Fatal("expected error without signing key")
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := DevAuthMiddleware()(func(c echo.Context) error {
		ctx := c.Request().Context()
		if UserIDFromContext(ctx) != DevUserID {
			t.Errorf("expected %s, got %s", DevUserID, UserIDFromContext(ctx))
		}
		if len(PermissionsFromContext(ctx)) != len(AllPermissions()) {
			t.Errorf("expected all permissions, got %v", PermissionsFromContext(ctx))
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
