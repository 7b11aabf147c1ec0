package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dsilva06/fitzy-sub001/internal/repository"
	"github.com/dsilva06/fitzy-sub001/internal/settlement"
)

// BookingHandler exposes the member-facing booking lifecycle: checkout,
// listing and cancellation.
type BookingHandler struct {
	Bookings  *repository.BookingRepo
	Payments  *repository.PaymentRepo
	Checkout  *settlement.Orchestrator
	Canceller *settlement.Canceller
}

func NewBookingHandler(b *repository.BookingRepo, p *repository.PaymentRepo, o *settlement.Orchestrator, cn *settlement.Canceller) *BookingHandler {
	return &BookingHandler{Bookings: b, Payments: p, Checkout: o, Canceller: cn}
}

type checkoutReq struct {
	Method string `json:"method"` // credits | card | zelle | pago_movil | binance
	Meta   string `json:"meta"`   // method-specific detail, e.g. phone or tx reference
}

type paymentPart struct {
	ID          uint64 `json:"id"`
	Method      string `json:"method"`
	AmountCents uint32 `json:"amount_cents"`
	Status      string `json:"status"`
	Reference   string `json:"reference,omitempty"`
}

type checkoutResp struct {
	BookingID uint64      `json:"booking_id"`
	SessionID uint64      `json:"session_id"`
	Status    string      `json:"status"`
	Deadline  time.Time   `json:"cancellation_deadline"`
	Payment   paymentPart `json:"payment"`
}

// Create books a spot on a session and settles payment in one call.
// POST /v1/sessions/:id/bookings
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.Method == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "method required"})
	}

	// Checkout runs several statements plus compensation on failure;
	// give it more room than a plain query.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	res, err := h.Checkout.Checkout(ctx, settlement.CheckoutInput{
		UserID:    uid,
		SessionID: sessionID,
		Method:    req.Method,
		Meta:      strings.TrimSpace(req.Meta),
	})
	if err != nil {
		return settlementError(c, err)
	}

	out := checkoutResp{
		BookingID: res.Booking.ID,
		SessionID: res.Booking.SessionID,
		Status:    res.Booking.Status,
		Deadline:  res.Booking.CancellationDeadline,
		Payment: paymentPart{
			ID:          res.Payment.ID,
			Method:      res.Payment.Method,
			AmountCents: res.Payment.AmountCents,
			Status:      res.Payment.Status,
		},
	}
	if res.Payment.Reference.Valid {
		out.Payment.Reference = res.Payment.Reference.String
	}
	return c.JSON(http.StatusCreated, out)
}

// ListMine returns the caller's bookings, newest first.
// GET /v1/bookings
func (h *BookingHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Bookings.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}

// Cancel refunds and releases a confirmed booking before its deadline.
// DELETE /v1/bookings/:id
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Canceller.Cancel(ctx, uid, bookingID); err != nil {
		return settlementError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPayments returns the caller's payment history.
// GET /v1/payments
func (h *BookingHandler) ListPayments(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Payments.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]echo.Map, 0, len(items))
	for _, p := range items {
		m := echo.Map{
			"id":           p.ID,
			"booking_id":   p.BookingID,
			"method":       p.Method,
			"amount_cents": p.AmountCents,
			"status":       p.Status,
			"created_at":   p.CreatedAt,
		}
		if p.RefundedAt != nil {
			m["refunded_at"] = p.RefundedAt
		}
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": out})
}
