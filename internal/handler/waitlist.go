package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

// WaitlistHandler queues members for full sessions.
type WaitlistHandler struct {
	Sessions *repository.SessionRepo
	Waitlist *repository.WaitlistRepo
}

func NewWaitlistHandler(s *repository.SessionRepo, w *repository.WaitlistRepo) *WaitlistHandler {
	return &WaitlistHandler{Sessions: s, Waitlist: w}
}

// Join adds the caller to a session's waitlist. Only full, still
// scheduled sessions accept entries; a session with open spots should
// be booked directly.
// POST /v1/sessions/:id/waitlist
func (h *WaitlistHandler) Join(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if s.Status != model.SessionScheduled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "session no longer accepts bookings"})
	}
	if s.SpotsLeft() > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "session has open spots, book directly"})
	}

	entry := &model.WaitlistEntry{UserID: uid, SessionID: sessionID, Status: model.WaitlistActive}
	if err := h.Waitlist.Join(ctx, entry); err != nil {
		if err == repository.ErrAlreadyWaitlisted {
			return c.JSON(http.StatusConflict, echo.Map{"error": "already on the waitlist"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"entry_id":   entry.ID,
		"session_id": sessionID,
		"status":     entry.Status,
	})
}

// ListMine returns the caller's waitlist entries.
// GET /v1/waitlist
func (h *WaitlistHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Waitlist.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]echo.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, echo.Map{
			"id":         e.ID,
			"session_id": e.SessionID,
			"status":     e.Status,
			"joined_at":  e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"waitlist": out})
}

// Leave removes the caller's ACTIVE entry from a waitlist. Promoted
// entries hold a spot and must go through booking cancellation instead.
// DELETE /v1/waitlist/:id
func (h *WaitlistHandler) Leave(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	entryID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Waitlist.CancelEntry(ctx, entryID, uid); err != nil {
		return settlementError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
