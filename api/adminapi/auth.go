package adminapi

import (
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eduverify/credtrust/access"
	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/storage/model"
)

const localsAdmin = "admin_username"

// actor returns the name recorded in the audit trail for changes made
// through the request
func actor(c *fiber.Ctx) string {
	if name, ok := c.Locals(localsAdmin).(string); ok && name != "" {
		return name
	}
	return "admin"
}

// authMiddleware lets everything through while the users store is empty, so
// the first admin can be created. Afterwards requests need Basic auth of an
// enabled admin.
func authMiddleware(users model.UsersStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := users.Count()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(apimodel.ErrorServerError(err.Error()))
		}
		if count == 0 {
			return c.Next()
		}

		challenge := func(description string) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(apimodel.ErrorInvalidClient(description))
		}
		username, password, ok := ParseBasicAuth(c)
		if !ok {
			return challenge("missing credentials")
		}
		user, err := users.Authenticate(username, password)
		if err != nil {
			return challenge("invalid credentials")
		}
		if access.Role(user.Role) != access.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(apimodel.ErrorForbidden("admin role required"))
		}
		c.Locals(localsAdmin, user.Username)
		return c.Next()
	}
}

// ParseBasicAuth returns the credentials of a Basic Authorization header
func ParseBasicAuth(c *fiber.Ctx) (username, password string, ok bool) {
	encoded, found := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Basic ")
	if !found {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
