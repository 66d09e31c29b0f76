package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// Locals written by JWTProtected.
const (
	localUserID            = "user_id"
	localUserRole          = "user_role"
	localInstructorCourses = "instructor_courses"
)

// JWTProtected validates HMAC bearer tokens and stores the caller's id, role
// and, for instructors, the courses the token grants grading rights on.
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

		if userID, ok := userIDFromClaims(claims); ok {
			c.Locals(localUserID, userID)
		}
		role := roleFromClaims(claims)
		if role != "" {
			c.Locals(localUserRole, role)
		}
		if role == models.RoleTeacher {
			if courses, ok := instructorCoursesFromClaims(claims); ok {
				c.Locals(localInstructorCourses, courses)
			}
		}

		return c.Next()
	}
}

func userIDFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		if value, ok := claims[key]; ok {
			if id, err := normalizeID(value); err == nil && id > 0 {
				return id, true
			}
		}
	}
	return 0, false
}

// instructorCoursesFromClaims reads the course ids a teacher token may grade.
// A token without the claim reports false, leaving ownership to the ledger.
func instructorCoursesFromClaims(claims jwt.MapClaims) ([]uint, bool) {
	for _, key := range []string{"courses", "course_ids"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		items, ok := value.([]interface{})
		if !ok {
			return []uint{}, true
		}
		courses := make([]uint, 0, len(items))
		for _, item := range items {
			if id, err := normalizeID(item); err == nil && id > 0 {
				courses = append(courses, id)
			}
		}
		return courses, true
	}
	return nil, false
}

func normalizeID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("negative id")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported id type %T", value)
	}
}

// roleFromClaims maps the token role onto student, teacher or admin. Tokens
// issued for instructors are graded as teachers.
func roleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		var role string
		switch v := value.(type) {
		case string:
			role = v
		case []interface{}:
			if len(v) > 0 {
				role, _ = v[0].(string)
			}
		}
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "instructor" {
			role = models.RoleTeacher
		}
		if role != "" {
			return role
		}
	}
	return ""
}
