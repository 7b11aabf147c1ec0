package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dsilva06/fitzy-sub001/internal/model"
	"github.com/dsilva06/fitzy-sub001/internal/repository"
)

// CreditHandler covers credit-package purchases and the member's
// credit balance.
type CreditHandler struct {
	Packages *repository.PackageRepo
	Repo     *repository.CreditRepo
}

func NewCreditHandler(p *repository.PackageRepo, r *repository.CreditRepo) *CreditHandler {
	return &CreditHandler{Packages: p, Repo: r}
}

// Purchase grants the caller the package's credits with an expiry of
// validity_days from now.
// POST /v1/packages/:id/purchase
func (h *CreditHandler) Purchase(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	pkgID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid package id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pkg, err := h.Packages.GetByID(ctx, pkgID)
	if err != nil {
		if err == repository.ErrPackageNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "package not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	now := time.Now().UTC()
	own := &model.CreditOwnership{
		UserID:           uid,
		PackageID:        pkg.ID,
		CreditsTotal:     pkg.Credits,
		CreditsRemaining: pkg.Credits,
		Status:           model.OwnershipActive,
		PurchasedAt:      now,
		ExpiresAt:        now.Add(time.Duration(pkg.ValidityDays) * 24 * time.Hour),
	}
	if err := h.Repo.CreateOwnership(ctx, own); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "purchase failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"ownership_id": own.ID,
		"package_id":   pkg.ID,
		"credits":      own.CreditsRemaining,
		"expires_at":   own.ExpiresAt,
	})
}

// ListMine returns the caller's credit grants plus the spendable total.
// GET /v1/credits
func (h *CreditHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	grants, err := h.Repo.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	var spendable uint32
	out := make([]echo.Map, 0, len(grants))
	for i := range grants {
		g := &grants[i]
		if g.Spendable() {
			spendable += g.CreditsRemaining
		}
		out = append(out, echo.Map{
			"id":                g.ID,
			"package_id":        g.PackageID,
			"credits_total":     g.CreditsTotal,
			"credits_remaining": g.CreditsRemaining,
			"status":            g.Status,
			"expires_at":        g.ExpiresAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"spendable": spendable, "grants": out})
}
