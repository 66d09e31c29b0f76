package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func disputeApp() *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if user := c.Get("X-User"); user != "" {
			id, err := normalizeID(user)
			if err == nil {
				c.Locals(localUserID, id)
			}
		}
		return c.Next()
	})
	app.Post(disputeRoute, DisputeRateLimit(1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func fileAs(t *testing.T, app *fiber.App, user, path string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestDisputeRateLimitIsPerStudentAndGrade(t *testing.T) {
	app := disputeApp()

	status := fileAs(t, app, "7", "/grading/grades/9/disputes")
	require.Equal(t, fiber.StatusCreated, status)
	status = fileAs(t, app, "7", "/grading/grades/9/disputes")
	require.Equal(t, fiber.StatusTooManyRequests, status)

	// Same student, another grade.
	status = fileAs(t, app, "7", "/grading/grades/10/disputes")
	require.Equal(t, fiber.StatusCreated, status)

	// Another student, same grade.
	status = fileAs(t, app, "8", "/grading/grades/9/disputes")
	require.Equal(t, fiber.StatusCreated, status)
}

func TestDisputeRateLimitRejectsAnonymousCallers(t *testing.T) {
	app := disputeApp()

	for i := 0; i < 3; i++ {
		status := fileAs(t, app, "", "/grading/grades/9/disputes")
		require.Equal(t, fiber.StatusUnauthorized, status)
	}

	status := fileAs(t, app, "7", "/grading/grades/9/disputes")
	require.Equal(t, fiber.StatusCreated, status)
}

func TestDisputeLimitKey(t *testing.T) {
	require.Equal(t, "disputes:user:7:grade:9", disputeLimitKey(7, " 9"))
	require.NotEqual(t, disputeLimitKey(7, "19"), disputeLimitKey(71, "9"))
}
