package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the user name expected in admin credentials
const AdminUser = "admin"

// AdminAuth handles admin authentication with HTTP Basic credentials
type AdminAuth struct {
	passwordHash []byte
}

// NewAdminAuth creates a new admin auth middleware. Only the bcrypt hash of the
// password is kept. An empty password disables the check, which is only
// acceptable in development.
func NewAdminAuth(adminPassword string) (*AdminAuth, error) {
	if adminPassword == "" {
		slog.Warn("Admin authentication disabled: no admin password configured")
		return &AdminAuth{}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &AdminAuth{
		passwordHash: hash,
	}, nil
}

// AuthMiddleware returns the admin authentication middleware
func (a *AdminAuth) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if a.passwordHash == nil {
			return c.Next()
		}

		user, password, ok := basicCredentials(c.Get(fiber.HeaderAuthorization))
		if !ok {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="Admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Admin authentication required",
			})
		}

		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(AdminUser)) == 1
		passOK := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
		if !userOK || !passOK {
			slog.Warn("Invalid admin credentials", "ip", c.IP())
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="Admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid admin credentials",
			})
		}

		return c.Next()
	}
}

func basicCredentials(header string) (user, password string, ok bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
