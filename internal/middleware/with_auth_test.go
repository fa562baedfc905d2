package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/medcompli/cme-go-api/internal/middleware"
)

func TestWithAuthPractitionerRole(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "1b8a9c3e-4f2d-4e8a-b7c1-2d9e8f7a6001")
		c.Locals("user_role", "Practitioner")
		return c.Next()
	})
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	}, middleware.AuthOptions{Role: middleware.RolePractitioner}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthPractitionerRoleDenied(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "1b8a9c3e-4f2d-4e8a-b7c1-2d9e8f7a6001")
		c.Locals("user_role", "guest")
		return c.Next()
	})
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	}, middleware.AuthOptions{Role: middleware.RolePractitioner}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWithAuthReviewerAllowsBothAdminRoles(t *testing.T) {
	for _, role := range []string{"unit_admin", "doh_admin"} {
		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user_id", "1b8a9c3e-4f2d-4e8a-b7c1-2d9e8f7a6001")
			c.Locals("user_role", role)
			return c.Next()
		})
		app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		}, middleware.AuthOptions{Role: middleware.AuthRoleReviewer}))

		resp := perform(t, app)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "role %s", role)
	}
}

func TestWithAuthReviewerDeniesPractitioner(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "1b8a9c3e-4f2d-4e8a-b7c1-2d9e8f7a6001")
		c.Locals("user_role", "practitioner")
		return c.Next()
	})
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}, middleware.AuthOptions{Role: middleware.AuthRoleReviewer}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWithAuthDOHAdminOnlyRoute(t *testing.T) {
	newApp := func(role string) *fiber.App {
		app := fiber.New()
		if role != "" {
			app.Use(func(c *fiber.Ctx) error {
				c.Locals("user_id", "1b8a9c3e-4f2d-4e8a-b7c1-2d9e8f7a6001")
				c.Locals("user_role", role)
				return c.Next()
			})
		}
		app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusCreated)
		}, middleware.AuthOptions{Role: middleware.RoleDOHAdmin}))
		return app
	}

	resp := perform(t, newApp("doh_admin"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = perform(t, newApp("unit_admin"))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// A non-any role selector implies an authenticated user.
	resp = perform(t, newApp(""))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWithAuthAnyRequiresUserWhenOptedIn(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}, middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWithAuthAnyAllowsAnonymousByDefault(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.WithAuth(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}, middleware.AuthOptions{Role: middleware.AuthRoleAny}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func perform(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
