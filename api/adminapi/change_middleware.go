package adminapi

import (
	"github.com/gofiber/fiber/v2"
)

// changeNotificationMiddleware calls onChange for requests that
// successfully modify certificate state.
// It should be attached only to non-GET routes.
func changeNotificationMiddleware(onChange func()) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		status := c.Response().StatusCode()
		if onChange != nil && status >= 200 && status < 300 {
			onChange()
		}
		return nil
	}
}
