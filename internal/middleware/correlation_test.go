package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/observability"
)

func TestCorrelationIDFollowsRequest(t *testing.T) {
	var fromLocals, fromContext string
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		fromLocals = GetCorrelationID(c)
		fromContext = observability.CorrelationID(c.UserContext())
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", " regrade-77 ")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "regrade-77", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "regrade-77", fromLocals)
	require.Equal(t, "regrade-77", fromContext)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	generated := resp.Header.Get("X-Correlation-ID")
	_, err = uuid.Parse(generated)
	require.NoError(t, err)
	require.Equal(t, generated, fromContext)
}
