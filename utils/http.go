// utils/http.go - HTTP helpers for Fiber handlers
package utils

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// JSONError sends a JSON error response
func JSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// JSONSuccess sends a JSON success response. Map data is merged into the
// envelope; anything else goes under "data".
func JSONSuccess(c *fiber.Ctx, data interface{}) error {
	response := fiber.Map{
		"success": true,
	}

	// Merge data into response
	if dataMap, ok := data.(fiber.Map); ok {
		for k, v := range dataMap {
			response[k] = v
		}
	} else if data != nil {
		response["data"] = data
	}

	return c.JSON(response)
}

// ParamID parses a positive integer route parameter
func ParamID(c *fiber.Ctx, key string) (uint, bool) {
	raw := strings.TrimSpace(c.Params(key))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// QueryInt gets an integer query parameter
func QueryInt(c *fiber.Ctx, key string, defaultValue int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
