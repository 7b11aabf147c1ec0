package middleware

// Shared helpers for building per-user keys in the rate limiter.

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated user's ID for rate-limit
// keys. JWTAuth stores the raw claim value, which arrives as a float64
// from the JWT decoder. Unauthenticated requests share the "anon"
// bucket and are keyed by IP instead.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	case uint64:
		return fmt.Sprintf("%d", v)
	}
	return "anon"
}
