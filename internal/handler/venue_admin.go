// This file defines the venue-management API. Every route requires the
// VENUE role and every lookup is scoped to the authenticated owner, so
// one venue owner can never touch another's catalogue.

package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

// VenueAdminHandler bundles the repositories behind venue management.
type VenueAdminHandler struct {
	Venues     *repository.VenueRepo
	ClassTypes *repository.ClassTypeRepo
	Sessions   *repository.SessionRepo
	Packages   *repository.PackageRepo
}

func NewVenueAdminHandler(v *repository.VenueRepo, ct *repository.ClassTypeRepo, s *repository.SessionRepo, p *repository.PackageRepo) *VenueAdminHandler {
	return &VenueAdminHandler{Venues: v, ClassTypes: ct, Sessions: s, Packages: p}
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// ownVenue loads a venue only if the caller owns it.
func (h *VenueAdminHandler) ownVenue(ctx context.Context, c echo.Context, param string) (*model.Venue, error) {
	uid, err := getUserID(c)
	if err != nil {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, param)
	if !ok {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	v, err := h.Venues.GetByIDAndOwner(ctx, id, uid)
	if err != nil {
		if err == repository.ErrVenueNotFound {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return v, nil
}

// ----- venues -----

type venueReq struct {
	Name        string `json:"name"`
	City        string `json:"city"`
	Description string `json:"description"`
}

// CreateVenue registers a new venue for the caller.
// POST /v1/manage/venues
func (h *VenueAdminHandler) CreateVenue(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.City = strings.TrimSpace(req.City)
	if req.Name == "" || req.City == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and city required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	v := &model.Venue{OwnerID: uid, Name: req.Name, City: req.City}
	if d := strings.TrimSpace(req.Description); d != "" {
		v.Description = sql.NullString{String: d, Valid: true}
	}
	if err := h.Venues.Create(ctx, v); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": v.ID, "name": v.Name, "city": v.City})
}

// ListVenues returns the caller's venues.
// GET /v1/manage/venues
func (h *VenueAdminHandler) ListVenues(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	venues, err := h.Venues.ListByOwner(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(venues))
	for _, v := range venues {
		m := echo.Map{"id": v.ID, "name": v.Name, "city": v.City}
		if v.Description.Valid {
			m["description"] = v.Description.String
		}
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// UpdateVenue edits name, city or description.
// PUT /v1/manage/venues/:id
func (h *VenueAdminHandler) UpdateVenue(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.ownVenue(ctx, c, "id")
	if v == nil {
		return err
	}
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if n := strings.TrimSpace(req.Name); n != "" {
		v.Name = n
	}
	if ct := strings.TrimSpace(req.City); ct != "" {
		v.City = ct
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		v.Description = sql.NullString{String: d, Valid: true}
	}
	if err := h.Venues.Update(ctx, v); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": v.ID, "name": v.Name, "city": v.City})
}

// DeleteVenue removes a venue and everything under it (FK cascade).
// DELETE /v1/manage/venues/:id
func (h *VenueAdminHandler) DeleteVenue(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.ownVenue(ctx, c, "id")
	if v == nil {
		return err
	}
	if err := h.Venues.Delete(ctx, v.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- class types -----

type classTypeReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DurationMin uint32 `json:"duration_min"`
}

// CreateClassType adds a class type to a venue.
// POST /v1/manage/venues/:id/class-types
func (h *VenueAdminHandler) CreateClassType(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.ownVenue(ctx, c, "id")
	if v == nil {
		return err
	}
	var req classTypeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DurationMin == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and duration_min required"})
	}

	ct := &model.ClassType{VenueID: v.ID, Name: req.Name, DurationMin: req.DurationMin}
	if d := strings.TrimSpace(req.Description); d != "" {
		ct.Description = sql.NullString{String: d, Valid: true}
	}
	if err := h.ClassTypes.Create(ctx, ct); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": ct.ID, "name": ct.Name, "duration_min": ct.DurationMin})
}

// ListClassTypes lists a venue's class types.
// GET /v1/manage/venues/:id/class-types
func (h *VenueAdminHandler) ListClassTypes(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.ownVenue(ctx, c, "id")
	if v == nil {
		return err
	}
	items, err := h.ClassTypes.ListByVenue(ctx, v.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(items))
	for _, ct := range items {
		m := echo.Map{"id": ct.ID, "name": ct.Name, "duration_min": ct.DurationMin}
		if ct.Description.Valid {
			m["description"] = ct.Description.String
		}
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// DeleteClassType removes a class type from a venue.
// DELETE /v1/manage/venues/:id/class-types/:ctid
func (h *VenueAdminHandler) DeleteClassType(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.ownVenue(ctx, c, "id")
	if v == nil {
		return err
	}
	ctID, ok := pathID(c, "ctid")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class type id"})
	}
	if err := h.ClassTypes.Delete(ctx, ctID, v.ID); err != nil {
		if err == repository.ErrClassTypeNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class type not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- sessions -----

type sessionReq struct {
	ClassTypeID   uint64    `json:"class_type_id"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	CapacityTotal uint32    `json:"capacity_total"`
	PriceCents    uint32    `json:"price_cents"`
	CreditCost    uint32    `json:"credit_cost"`
}

// CreateSession publishes a bookable session under a venue.
// POST /v1/manage/venues/:id/sessions
func (h *VenueAdminHandler) CreateSession(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.ownVenue(ctx, c, "id")
	if v == nil {
		return err
	}
	var req sessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ClassTypeID == 0 || req.CapacityTotal == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "class_type_id and capacity_total required"})
	}
	if !req.EndsAt.After(req.StartsAt) || !req.StartsAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session must start in the future and end after it starts"})
	}
	if _, err := h.ClassTypes.GetByIDAndVenue(ctx, req.ClassTypeID, v.ID); err != nil {
		if err == repository.ErrClassTypeNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class type not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	s := &model.Session{
		VenueID:       v.ID,
		ClassTypeID:   req.ClassTypeID,
		StartsAt:      req.StartsAt.UTC(),
		EndsAt:        req.EndsAt.UTC(),
		CapacityTotal: req.CapacityTotal,
		PriceCents:    req.PriceCents,
		CreditCost:    req.CreditCost,
		Status:        model.SessionScheduled,
	}
	if err := h.Sessions.Create(ctx, s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": s.ID, "starts_at": s.StartsAt, "capacity_total": s.CapacityTotal})
}

// UpdateSession reschedules or reprices a session the caller owns.
// Capacity already taken is never reduced below the booked count by
// the repository.
// PUT /v1/manage/sessions/:id
func (h *VenueAdminHandler) UpdateSession(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Sessions.GetByIDForOwner(ctx, id, uid)
	if err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	var req sessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !req.StartsAt.IsZero() {
		s.StartsAt = req.StartsAt.UTC()
	}
	if !req.EndsAt.IsZero() {
		s.EndsAt = req.EndsAt.UTC()
	}
	if !s.EndsAt.After(s.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session must end after it starts"})
	}
	if req.CapacityTotal > 0 {
		if req.CapacityTotal < s.CapacityTaken {
			return c.JSON(http.StatusConflict, echo.Map{"error": "capacity below booked count"})
		}
		s.CapacityTotal = req.CapacityTotal
	}
	if req.PriceCents > 0 {
		s.PriceCents = req.PriceCents
	}
	if req.CreditCost > 0 {
		s.CreditCost = req.CreditCost
	}
	if err := h.Sessions.UpdateSchedule(ctx, s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": s.ID, "starts_at": s.StartsAt, "ends_at": s.EndsAt, "capacity_total": s.CapacityTotal})
}

// CancelSession closes a session to new bookings. Existing confirmed
// bookings keep their member-initiated cancellation path.
// POST /v1/manage/sessions/:id/cancel
func (h *VenueAdminHandler) CancelSession(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Sessions.GetByIDForOwner(ctx, id, uid)
	if err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if s.Status != model.SessionScheduled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "session already closed"})
	}
	if err := h.Sessions.SetStatus(ctx, s.ID, model.SessionCancelled); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListSessions lists a venue's upcoming sessions with live counters.
// GET /v1/manage/venues/:id/sessions
func (h *VenueAdminHandler) ListSessions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.ownVenue(ctx, c, "id")
	if v == nil {
		return err
	}
	items, err := h.Sessions.ListUpcomingByVenue(ctx, v.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(items))
	for i := range items {
		s := &items[i]
		out = append(out, echo.Map{
			"id":             s.ID,
			"class_type_id":  s.ClassTypeID,
			"starts_at":      s.StartsAt,
			"ends_at":        s.EndsAt,
			"capacity_total": s.CapacityTotal,
			"capacity_taken": s.CapacityTaken,
			"price_cents":    s.PriceCents,
			"credit_cost":    s.CreditCost,
			"status":         s.Status,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ----- credit packages -----

type packageReq struct {
	Name         string `json:"name"`
	Credits      uint32 `json:"credits"`
	PriceCents   uint32 `json:"price_cents"`
	ValidityDays uint32 `json:"validity_days"`
}

// CreatePackage publishes a credit bundle for sale under a venue.
// POST /v1/manage/venues/:id/packages
func (h *VenueAdminHandler) CreatePackage(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.ownVenue(ctx, c, "id")
	if v == nil {
		return err
	}
	var req packageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Credits == 0 || req.ValidityDays == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, credits and validity_days required"})
	}

	p := &model.CreditPackage{
		VenueID:      v.ID,
		Name:         req.Name,
		Credits:      req.Credits,
		PriceCents:   req.PriceCents,
		ValidityDays: req.ValidityDays,
	}
	if err := h.Packages.Create(ctx, p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": p.ID, "name": p.Name, "credits": p.Credits})
}

// DeletePackage withdraws a package from sale. Existing ownerships
// keep their credits.
// DELETE /v1/manage/venues/:id/packages/:pid
func (h *VenueAdminHandler) DeletePackage(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.ownVenue(ctx, c, "id")
	if v == nil {
		return err
	}
	pid, ok := pathID(c, "pid")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid package id"})
	}
	if err := h.Packages.Delete(ctx, pid, v.ID); err != nil {
		if err == repository.ErrPackageNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "package not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
