package auth

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func newProtectedApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/private", JWTMiddleware(secret), func(c *fiber.Ctx) error {
		if op := Operator(c); op != "" {
			return c.SendString(op)
		}
		return c.SendStatus(http.StatusOK)
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	app := newProtectedApp("secret")

	// missing token
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}

	// valid token
	token, err := SignToken("secret", "ops", DefaultTokenTTL)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ops" {
		t.Fatalf("expected operator in locals, got %q", body)
	}
}

func TestJWTMiddlewareRejectsBadTokens(t *testing.T) {
	app := newProtectedApp("secret")

	other, _ := SignToken("other-secret", "ops", DefaultTokenTTL)
	expired, _ := SignToken("secret", "ops", -time.Minute)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Operator: "ops"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Operator: "ops"}).SignedString([]byte("secret"))
	anonymous, _ := SignToken("secret", "", DefaultTokenTTL)

	for name, header := range map[string]string{
		"wrong secret": "Bearer " + other,
		"expired":      "Bearer " + expired,
		"alg none":     "Bearer " + none,
		"no expiry":    "Bearer " + noExpiry,
		"no operator":  "Bearer " + anonymous,
		"garbage":      "Bearer not-a-token",
		"basic scheme": "Basic abc",
	} {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", header)
		resp, _ := app.Test(req)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected unauthorized, got %d", name, resp.StatusCode)
		}
	}
}

func TestJWTMiddlewareInvalidClaims(t *testing.T) {
	old := parseMiddlewareClaimsFn
	parseMiddlewareClaimsFn = func(string, jwt.Claims, jwt.Keyfunc, ...jwt.ParserOption) (*jwt.Token, error) {
		return &jwt.Token{Claims: jwt.MapClaims{}, Valid: true}, nil
	}
	defer func() { parseMiddlewareClaimsFn = old }()

	app := newProtectedApp("secret")
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}
}

func TestJWTMiddlewareOpenWithoutSecret(t *testing.T) {
	app := newProtectedApp("")
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/private", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok without secret, got %d", resp.StatusCode)
	}
}

func TestSignTokenRequiresSecret(t *testing.T) {
	if _, err := SignToken("", "ops", DefaultTokenTTL); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestBearerFromHeader(t *testing.T) {
	if bearerFromHeader("bearer abc") != "abc" {
		t.Fatalf("expected case-insensitive scheme")
	}
	if bearerFromHeader("abc") != "" {
		t.Fatalf("expected empty token")
	}
}
