package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// RequireRole admits callers whose role is one of roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[UserRole(c)]; !ok {
			return utils.SendErrorWithCode(c, fiber.StatusForbidden, "insufficient_role", "insufficient permissions")
		}
		return c.Next()
	}
}

// InstructorOnly guards grade writes and gradebook reads.
func InstructorOnly() fiber.Handler {
	return RequireRole(models.RoleTeacher, models.RoleAdmin)
}

// StudentOnly guards dispute filing.
func StudentOnly() fiber.Handler {
	return RequireRole(models.RoleStudent)
}
