package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
)

// reduce marshals data through sheriff so only the requested field groups are returned.
// ?detailed=true switches from the basic to the detailed group.
func reduce(c *fiber.Ctx, data interface{}) (interface{}, error) {
	groups := []string{"basic"}
	if c.QueryBool("detailed", false) {
		groups = []string{"basic", "detailed"}
	}

	return sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, data)
}

func sendError(c *fiber.Ctx, status int, message string) error {
	c.Status(status)
	return c.JSON(fiber.Map{
		"error": message,
	})
}
