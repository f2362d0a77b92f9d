package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "session_token"

// SessionValidator resolves a token into a live session.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (service.Session, error)
}

// SessionAuth authenticates requests carrying a bearer token or the session cookie.
func SessionAuth(validator SessionValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFromRequest(c)
		if token == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		session, err := validator.Validate(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, service.ErrInvalidSession) {
				return utils.SendError(c, fiber.StatusUnauthorized, "session is invalid or expired")
			}
			return utils.SendError(c, fiber.StatusServiceUnavailable, "session store unavailable")
		}

		c.Locals("user_id", session.UserID)
		c.Locals("user_role", session.Role)
		c.Locals("session_id", session.ID)

		return c.Next()
	}
}

func tokenFromRequest(c *fiber.Ctx) string {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	const bearer = "bearer "
	if len(authorization) > len(bearer) && strings.EqualFold(authorization[:len(bearer)], bearer) {
		return strings.TrimSpace(authorization[len(bearer):])
	}

	return strings.TrimSpace(c.Cookies(SessionCookie))
}
