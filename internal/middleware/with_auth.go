package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/medcompli/cme-go-api/internal/utils"
)

// Auth role selectors used by the WithAuth helper.
const (
	AuthRoleAny      = "any"
	AuthRoleReviewer = "reviewer"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with basic authentication/authorization guards.
// The reviewer selector admits both unit and department-of-health admins.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if requireUser && userID == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if role == AuthRoleAny {
			if !requireUser || userID != nil {
				return handler(c)
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		currentRole := normalizeRoleValue(c.Locals("user_role"))
		switch role {
		case AuthRoleReviewer:
			if currentRole != RoleUnitAdmin && currentRole != RoleDOHAdmin {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		default:
			if currentRole != role {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		}

		return handler(c)
	}
}
