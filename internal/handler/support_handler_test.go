package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/gema-grading-api/internal/config"
	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/internal/router"
	"github.com/noah-isme/gema-grading-api/internal/service"
)

func TestHealthReportsProbes(t *testing.T) {
	healthy := fiber.New()
	router.Register(healthy, config.Config{AppName: "Test", AppEnv: "test"}, router.Dependencies{
		HealthProbes: []handler.HealthProbe{{Name: "database", Check: func(context.Context) error { return nil }}},
	})

	resp, err := healthy.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Test", resp.Header.Get("X-Application"))

	degraded := fiber.New()
	router.Register(degraded, config.Config{AppName: "Test"}, router.Dependencies{
		HealthProbes: []handler.HealthProbe{
			{Name: "database", Check: func(context.Context) error { return nil }},
			{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		},
	})

	resp, err = degraded.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Data handler.HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "degraded", body.Data.Status)
	require.Equal(t, "ok", body.Data.Dependencies["database"])
	require.Equal(t, "connection refused", body.Data.Dependencies["redis"])

	resp, err = degraded.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestNotificationInbox(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))

	logger := zerolog.New(io.Discard)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validator.New(validator.WithRequiredStructEnabled()), logger)
	created, err := notifications.Publish(context.Background(), dto.NotificationCreateRequest{UserID: 5, Type: service.NotificationGradePosted, Message: "Lab report graded"})
	require.NoError(t, err)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, 0),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if c.Get("X-Test-User") == "5" {
				c.Locals("user_id", uint(5))
			} else if c.Get("X-Test-User") == "6" {
				c.Locals("user_id", uint(6))
			}
			return c.Next()
		},
	})

	request := func(method, path, user string) *http.Response {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-Test-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := request(http.MethodGet, "/api/v1/notifications?unread=true", "5")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list struct {
		Data []dto.NotificationResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Data, 1)
	require.Equal(t, created.ID, list.Data[0].ID)

	readPath := "/api/v1/notifications/" + itoa(created.ID) + "/read"
	require.Equal(t, fiber.StatusNotFound, request(http.MethodPatch, readPath, "6").StatusCode)
	require.Equal(t, fiber.StatusOK, request(http.MethodPatch, readPath, "5").StatusCode)
	require.Equal(t, fiber.StatusBadRequest, request(http.MethodPatch, "/api/v1/notifications/zero/read", "5").StatusCode)
	require.Equal(t, fiber.StatusUnauthorized, request(http.MethodGet, "/api/v1/notifications", "").StatusCode)

	resp = request(http.MethodGet, "/api/v1/notifications?unread=true", "5")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Empty(t, list.Data)
}
