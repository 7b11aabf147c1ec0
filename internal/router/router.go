// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/dsilva06/fitzy-sub001/internal/handler"
	"github.com/dsilva06/fitzy-sub001/internal/middleware"
	"github.com/dsilva06/fitzy-sub001/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers authentication routes. Unauthenticated
// operations live under /v1/auth; /v1/me sits behind the JWT.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes a refresh token in the body or a bearer header, so
	// it stays outside the JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleMember, model.RoleVenue))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated browse endpoints.
// Extra middleware (the Redis response cache) applies to the whole
// group.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1", mw...)
	g.GET("/venues", p.ListVenues)
	g.GET("/venues/:id", p.GetVenue)
	g.GET("/venues/:id/sessions", p.ListVenueSessions)
	g.GET("/venues/:id/packages", p.ListVenuePackages)
	g.GET("/sessions/:id", p.GetSession)
}

// RegisterMember registers the member-facing booking, credit and
// waitlist endpoints. checkoutMW is applied only to the two routes
// that move money, so browsing stays cheap.
func RegisterMember(e *echo.Echo, b *handler.BookingHandler, cr *handler.CreditHandler, w *handler.WaitlistHandler, jwtSecret string, checkoutMW ...echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleMember))

	g.POST("/sessions/:id/bookings", b.Create, checkoutMW...)
	g.GET("/bookings", b.ListMine)
	g.DELETE("/bookings/:id", b.Cancel)
	g.GET("/payments", b.ListPayments)

	g.POST("/packages/:id/purchase", cr.Purchase, checkoutMW...)
	g.GET("/credits", cr.ListMine)

	g.POST("/sessions/:id/waitlist", w.Join)
	g.GET("/waitlist", w.ListMine)
	g.DELETE("/waitlist/:id", w.Leave)
}

// RegisterVenueAdmin registers the owner-scoped catalogue CRUD under
// /v1/manage. Every route requires the VENUE role.
func RegisterVenueAdmin(e *echo.Echo, v *handler.VenueAdminHandler, jwtSecret string) {
	g := e.Group("/v1/manage")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleVenue))

	g.POST("/venues", v.CreateVenue)
	g.GET("/venues", v.ListVenues)
	g.PUT("/venues/:id", v.UpdateVenue)
	g.DELETE("/venues/:id", v.DeleteVenue)

	g.POST("/venues/:id/class-types", v.CreateClassType)
	g.GET("/venues/:id/class-types", v.ListClassTypes)
	g.DELETE("/venues/:id/class-types/:ctid", v.DeleteClassType)

	g.POST("/venues/:id/sessions", v.CreateSession)
	g.GET("/venues/:id/sessions", v.ListSessions)
	g.PUT("/sessions/:id", v.UpdateSession)
	g.POST("/sessions/:id/cancel", v.CancelSession)

	g.POST("/venues/:id/packages", v.CreatePackage)
	g.DELETE("/venues/:id/packages/:pid", v.DeletePackage)
}
