package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/medcompli/cme-go-api/internal/utils"
)

// JWTProtected returns a middleware that validates JWT bearer tokens. The
// subject claim carries the actor's practitioner identifier; unit admins
// additionally carry a unit_id claim that scopes their review authority.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		if actorID := extractActorIDFromClaims(claims); actorID != "" {
			c.Locals("user_id", actorID)
		}
		if role := extractUserRoleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}
		if unitID := extractUnitIDFromClaims(claims); unitID != nil {
			c.Locals("unit_id", *unitID)
		}

		return c.Next()
	}
}

func extractActorIDFromClaims(claims jwt.MapClaims) string {
	keys := []string{"sub", "user_id", "practitioner_id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if id, ok := value.(string); ok {
				if trimmed := strings.TrimSpace(id); trimmed != "" {
					return trimmed
				}
			}
		}
	}

	return ""
}

func extractUnitIDFromClaims(claims jwt.MapClaims) *uint {
	value, ok := claims["unit_id"]
	if !ok {
		return nil
	}
	// JSON numbers decode as float64.
	if number, ok := value.(float64); ok && number > 0 {
		unitID := uint(number)
		return &unitID
	}
	return nil
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				role := strings.ToLower(strings.TrimSpace(str))
				if role != "" {
					return role
				}
			}
		}
	default:
		return ""
	}
	return ""
}
