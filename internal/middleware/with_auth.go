package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// UserID returns the authenticated caller id, or 0 when the request is anonymous.
func UserID(c *fiber.Ctx) uint {
	switch id := c.Locals(localUserID).(type) {
	case uint:
		return id
	case int:
		if id > 0 {
			return uint(id)
		}
	}
	return 0
}

// UserRole returns the normalized role of the caller.
func UserRole(c *fiber.Ctx) string {
	role, _ := c.Locals(localUserRole).(string)
	return strings.ToLower(strings.TrimSpace(role))
}

// InstructorCourses returns the course ids carried by a teacher token. The
// second result is false when the token carried no course claim.
func InstructorCourses(c *fiber.Ctx) ([]uint, bool) {
	courses, ok := c.Locals(localInstructorCourses).([]uint)
	return courses, ok
}

// Authenticated rejects requests that carry no user identity.
func Authenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == 0 {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "unauthenticated", "authentication required")
		}
		return c.Next()
	}
}

// RequireCourseInstructor rejects teachers whose token lists courses that do
// not include the course named by param. Admins pass, and so do teacher tokens
// without a course claim; the ledger still checks course ownership for both.
func RequireCourseInstructor(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserRole(c) != models.RoleTeacher {
			return c.Next()
		}
		courses, ok := InstructorCourses(c)
		if !ok {
			return c.Next()
		}
		courseID, err := strconv.ParseUint(strings.TrimSpace(c.Params(param)), 10, 64)
		if err != nil {
			return c.Next()
		}
		for _, id := range courses {
			if uint64(id) == courseID {
				return c.Next()
			}
		}
		return utils.SendErrorWithCode(c, fiber.StatusForbidden, "not_course_instructor", "not the instructor of this course")
	}
}
