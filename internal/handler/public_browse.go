// This file defines the public browsing API. These routes let
// unauthenticated users discover venues, upcoming sessions and credit
// packages. Sensitive fields (owner IDs, internal counters) are
// filtered from responses.

package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

// PublicHandler aggregates repositories needed for unauthenticated
// browsing and produces sanitized responses.
type PublicHandler struct {
	Venues   *repository.VenueRepo
	Sessions *repository.SessionRepo
	Packages *repository.PackageRepo
}

func NewPublicHandler(v *repository.VenueRepo, s *repository.SessionRepo, p *repository.PackageRepo) *PublicHandler {
	return &PublicHandler{Venues: v, Sessions: s, Packages: p}
}

// PublicVenue contains only safe venue fields.
type PublicVenue struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	City        string `json:"city"`
	Description string `json:"description,omitempty"`
}

// PublicSession is a bookable session in list responses. SpotsLeft is
// derived so clients never see raw counters.
type PublicSession struct {
	ID         uint64    `json:"id"`
	VenueID    uint64    `json:"venue_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	SpotsLeft  uint32    `json:"spots_left"`
	PriceCents uint32    `json:"price_cents"`
	CreditCost uint32    `json:"credit_cost"`
	Status     string    `json:"status"`
}

// PublicPackage is a purchasable credit bundle.
type PublicPackage struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Credits      uint32 `json:"credits"`
	PriceCents   uint32 `json:"price_cents"`
	ValidityDays uint32 `json:"validity_days"`
}

// ListVenues returns all venues.
// GET /v1/venues
func (h *PublicHandler) ListVenues(c echo.Context) error {
	ctx := c.Request().Context()
	venues, err := h.Venues.ListAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicVenue, 0, len(venues))
	for _, v := range venues {
		pv := PublicVenue{ID: v.ID, Name: v.Name, City: v.City}
		if v.Description.Valid {
			pv.Description = v.Description.String
		}
		out = append(out, pv)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetVenue returns a single venue.
// GET /v1/venues/:id
func (h *PublicHandler) GetVenue(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	v, err := h.Venues.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrVenueNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	pv := PublicVenue{ID: v.ID, Name: v.Name, City: v.City}
	if v.Description.Valid {
		pv.Description = v.Description.String
	}
	return c.JSON(http.StatusOK, pv)
}

// ListVenueSessions returns a venue's upcoming sessions.
// GET /v1/venues/:id/sessions
func (h *PublicHandler) ListVenueSessions(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Venues.GetByID(ctx, id); err != nil {
		if err == repository.ErrVenueNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	sessions, err := h.Sessions.ListUpcomingByVenue(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicSession, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		out = append(out, PublicSession{
			ID:         s.ID,
			VenueID:    s.VenueID,
			StartsAt:   s.StartsAt,
			EndsAt:     s.EndsAt,
			SpotsLeft:  s.SpotsLeft(),
			PriceCents: s.PriceCents,
			CreditCost: s.CreditCost,
			Status:     s.Status,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetSession returns one session with live availability.
// GET /v1/sessions/:id
func (h *PublicHandler) GetSession(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	s, err := h.Sessions.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, PublicSession{
		ID:         s.ID,
		VenueID:    s.VenueID,
		StartsAt:   s.StartsAt,
		EndsAt:     s.EndsAt,
		SpotsLeft:  s.SpotsLeft(),
		PriceCents: s.PriceCents,
		CreditCost: s.CreditCost,
		Status:     s.Status,
	})
}

// ListVenuePackages returns a venue's credit packages.
// GET /v1/venues/:id/packages
func (h *PublicHandler) ListVenuePackages(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Venues.GetByID(ctx, id); err != nil {
		if err == repository.ErrVenueNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	pkgs, err := h.Packages.ListByVenue(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicPackage, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, PublicPackage{
			ID:           p.ID,
			Name:         p.Name,
			Credits:      p.Credits,
			PriceCents:   p.PriceCents,
			ValidityDays: p.ValidityDays,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
