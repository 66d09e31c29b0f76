package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

const (
	gradeRoute   = "/grading/courses/:courseId/items/:itemId/students/:studentId/grade"
	disputeRoute = "/grading/grades/:gradeId/disputes"
	gradePath    = "/grading/courses/1/items/2/students/3/grade"
	disputePath  = "/grading/grades/9/disputes"
)

func gradingRoutes(role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(localUserID, uint(3))
		c.Locals(localUserRole, role)
		return c.Next()
	})
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Put(gradeRoute, InstructorOnly(), ok)
	app.Post(disputeRoute, StudentOnly(), ok)
	return app
}

func call(t *testing.T, app *fiber.App, method, path string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Code string `json:"code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body.Code
}

func TestStudentCannotWriteGrades(t *testing.T) {
	status, code := call(t, gradingRoutes(models.RoleStudent), http.MethodPut, gradePath)
	require.Equal(t, fiber.StatusForbidden, status)
	require.Equal(t, "insufficient_role", code)

	status, _ = call(t, gradingRoutes(models.RoleStudent), http.MethodPost, disputePath)
	require.Equal(t, fiber.StatusOK, status)
}

func TestTeacherCannotFileDisputes(t *testing.T) {
	status, code := call(t, gradingRoutes(models.RoleTeacher), http.MethodPost, disputePath)
	require.Equal(t, fiber.StatusForbidden, status)
	require.Equal(t, "insufficient_role", code)

	status, _ = call(t, gradingRoutes(models.RoleTeacher), http.MethodPut, gradePath)
	require.Equal(t, fiber.StatusOK, status)
}

func TestAdminGradesButDoesNotDispute(t *testing.T) {
	status, _ := call(t, gradingRoutes(models.RoleAdmin), http.MethodPut, gradePath)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, gradingRoutes(models.RoleAdmin), http.MethodPost, disputePath)
	require.Equal(t, fiber.StatusForbidden, status)
}

func TestMissingRoleIsDenied(t *testing.T) {
	status, _ := call(t, gradingRoutes(""), http.MethodPut, gradePath)
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = call(t, gradingRoutes(" Teacher "), http.MethodPut, gradePath)
	require.Equal(t, fiber.StatusOK, status)
}
