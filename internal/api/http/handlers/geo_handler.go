package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/armada-rental/rental-service/internal/service"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

// GeoHandler proxies geocoding and routing.
type GeoHandler struct {
	geo *service.GeoService
}

// NewGeoHandler constructs handler.
func NewGeoHandler(geo *service.GeoService) *GeoHandler {
	return &GeoHandler{geo: geo}
}

// Geocode GET /geo/geocode?q=.
func (h *GeoHandler) Geocode(c *fiber.Ctx) error {
	places, err := h.geo.Geocode(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": places})
}

// Reverse GET /geo/reverse?lat=&lng=.
func (h *GeoHandler) Reverse(c *fiber.Ctx) error {
	if c.Query("lat") == "" || c.Query("lng") == "" {
		return apperrors.NewValidationError("lat and lng required", nil)
	}
	at, err := service.ParseLatLng(c.Query("lat") + "," + c.Query("lng"))
	if err != nil {
		return err
	}
	place, err := h.geo.Reverse(c.UserContext(), at)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": place})
}

// Route GET /geo/route?from=lat,lng&to=lat,lng.
func (h *GeoHandler) Route(c *fiber.Ctx) error {
	from, err := service.ParseLatLng(c.Query("from"))
	if err != nil {
		return err
	}
	to, err := service.ParseLatLng(c.Query("to"))
	if err != nil {
		return err
	}
	route, err := h.geo.Route(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": route})
}
