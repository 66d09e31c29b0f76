package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// DisputeRateLimit caps how often one student may file against one grade
// within window. Requests must already be authenticated; anonymous callers are
// rejected instead of sharing a per-address bucket.
func DisputeRateLimit(max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 3
	}
	if window <= 0 {
		window = time.Minute
	}

	limit := limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return disputeLimitKey(UserID(c), c.Params("gradeId"))
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendErrorWithCode(c, fiber.StatusTooManyRequests, "dispute_rate_limited", "too many disputes for this grade, try again later")
		},
	})

	return func(c *fiber.Ctx) error {
		if UserID(c) == 0 {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "unauthenticated", "authentication required")
		}
		return limit(c)
	}
}

func disputeLimitKey(userID uint, gradeID string) string {
	return fmt.Sprintf("disputes:user:%d:grade:%s", userID, strings.TrimSpace(gradeID))
}
