package shared

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

type ServiceCustomClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// NewJWTServiceMiddleware rejects requests that do not carry a service token
// signed with secret.
func NewJWTServiceMiddleware(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		jwtToken, err := GetTokenFromRequest(c)
		if err != nil {
			slog.Error("Error getting token from request", "err", err)
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, token, err := ValidateJWTForService(jwtToken, secret)
		if err != nil || !token.Valid {
			slog.Error("Error validating token", "err", err)
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals("service", claims.Service)
		return c.Next()
	}
}

func GenerateJWTForService(serviceName string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ServiceCustomClaims{
		Service: serviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ValidateJWTForService(tokenString string, secret []byte) (*ServiceCustomClaims, *jwt.Token, error) {
	claims := &ServiceCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, nil, err
	}

	return claims, token, nil
}

func GetTokenFromRequest(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("missing or invalid Authorization header")
	}

	return strings.TrimPrefix(authHeader, "Bearer "), nil
}
