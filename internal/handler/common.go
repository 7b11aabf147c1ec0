// Package handler defines the HTTP handlers.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dsilva06/fitzy-sub001/internal/repository"
	"github.com/dsilva06/fitzy-sub001/internal/settlement"
)

// getUserID extracts the authenticated user's ID from the context. The
// JWT middleware stores the raw claim, which the decoder delivers as a
// float64.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// settlementError maps settlement and repository failures onto HTTP
// responses. Business refusals are 4xx; exhausted contention is 503 so
// clients know the request may succeed on retry.
func settlementError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, settlement.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session is full"})
	case errors.Is(err, settlement.ErrSessionClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session no longer accepts bookings"})
	case errors.Is(err, settlement.ErrDeadlinePassed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "cancellation deadline passed"})
	case errors.Is(err, settlement.ErrInsufficientCredits):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "insufficient credits"})
	case errors.Is(err, settlement.ErrPaymentDeclined):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment declined"})
	case errors.Is(err, settlement.ErrUnsupportedMethod):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported payment method"})
	case errors.Is(err, settlement.ErrNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrWaitlistNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, settlement.ErrForbidden), errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, settlement.ErrConcurrentModification):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "busy, retry shortly"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflicting state"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
