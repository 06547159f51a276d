package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const operatorLocal = "operator"

var (
	errMissingToken = errors.New("missing bearer token")
	errTokenInvalid = errors.New("token invalid")

	parseMiddlewareClaimsFn = jwt.ParseWithClaims
)

// JWTMiddleware admits requests carrying an HS256 control token signed with
// secret. With an empty secret the control surface is open.
func JWTMiddleware(secret string) fiber.Handler {
	if secret == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		operator, err := verifyOperator(bearerFromHeader(c.Get(fiber.HeaderAuthorization)), key)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(operatorLocal, operator)
		return c.Next()
	}
}

// Operator names whoever JWTMiddleware admitted, or "" on an open surface.
func Operator(c *fiber.Ctx) string {
	op, _ := c.Locals(operatorLocal).(string)
	return op
}

func verifyOperator(raw string, key []byte) (string, error) {
	if raw == "" {
		return "", errMissingToken
	}
	parsed, err := parseMiddlewareClaimsFn(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Operator == "" {
		return "", errTokenInvalid
	}
	return claims.Operator, nil
}

func bearerFromHeader(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
