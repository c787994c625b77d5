package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/armada-rental/rental-service/internal/api/http/handlers"
	"github.com/armada-rental/rental-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Bookings       *handlers.BookingsHandler
	Admin          *handlers.AdminHandler
	Webhooks       *handlers.WebhooksHandler
	Geo            *handlers.GeoHandler
	Messages       *handlers.MessagesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authenticated := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAnyRole()}
	staffOnly := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireStaff()}

	app.Get("/health/metrics", append(staffOnly, cfg.Health.Metrics)...)

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.SignUp)
	authGroup.Post("/token", cfg.Auth.Token)
	session := authGroup.Group("", authenticated...)
	session.Get("/session", cfg.Auth.Session)
	session.Post("/refresh", cfg.Auth.Refresh)
	session.Post("/logout", cfg.Auth.Logout)
	session.Put("/user", cfg.Auth.UpdateUser)

	bookings := app.Group("/bookings", authenticated...)
	bookings.Get("/", cfg.Bookings.ListBookings)
	bookings.Post("/", cfg.Bookings.CreateBooking)
	bookings.Get("/:id", cfg.Bookings.GetBooking)
	bookings.Patch("/:id", cfg.Bookings.UpdateBooking)
	bookings.Delete("/:id", cfg.Bookings.DeleteBooking)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Put("/users/:id/role", cfg.Admin.AssignRole)

	app.Post("/webhooks/dispatch", append(staffOnly, cfg.Webhooks.Dispatch)...)
	app.Post("/messages/send", append(staffOnly, cfg.Messages.Send)...)

	geo := app.Group("/geo", authenticated...)
	geo.Get("/geocode", cfg.Geo.Geocode)
	geo.Get("/reverse", cfg.Geo.Reverse)
	geo.Get("/route", cfg.Geo.Route)
}
