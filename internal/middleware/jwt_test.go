package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

const testSecret = "grading-secret"

type identity struct {
	userID  uint
	role    string
	courses []uint
	claimed bool
}

func authorize(t *testing.T, header string) (int, identity) {
	t.Helper()
	var seen identity
	app := fiber.New()
	app.Get("/", JWTProtected(testSecret), func(c *fiber.Ctx) error {
		seen.userID = UserID(c)
		seen.role = UserRole(c)
		seen.courses, seen.claimed = InstructorCourses(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode, seen
}

func sign(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestJWTCarriesInstructorCourses(t *testing.T) {
	status, seen := authorize(t, sign(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     "42",
		"role":    "Instructor",
		"courses": []interface{}{7, "9", "x", -1},
	}))
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, uint(42), seen.userID)
	require.Equal(t, models.RoleTeacher, seen.role)
	require.True(t, seen.claimed)
	require.Equal(t, []uint{7, 9}, seen.courses)
}

func TestJWTIgnoresCourseClaimForStudents(t *testing.T) {
	status, seen := authorize(t, sign(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    float64(5),
		"roles":      []interface{}{"student"},
		"course_ids": []interface{}{1},
	}))
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, uint(5), seen.userID)
	require.Equal(t, models.RoleStudent, seen.role)
	require.False(t, seen.claimed)
}

func TestJWTTeacherWithoutCourseClaim(t *testing.T) {
	status, seen := authorize(t, sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": 3, "role": "teacher"}))
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, uint(3), seen.userID)
	require.False(t, seen.claimed)
	require.Nil(t, seen.courses)
}

func TestJWTRejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"empty bearer": "Bearer   ",
		"garbage":      "Bearer not-a-token",
		"wrong secret": func() string {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("other"))
			require.NoError(t, err)
			return "Bearer " + token
		}(),
	}
	for name, header := range cases {
		status, _ := authorize(t, header)
		require.Equal(t, fiber.StatusUnauthorized, status, name)
	}
}
