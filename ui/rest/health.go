package rest

import (
	"github.com/AzielCF/wa-gateway/domains/health"
	"github.com/gofiber/fiber/v2"
)

type Health struct {
	Service health.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service health.IHealthUsecase) Health {
	handler := Health{Service: service}
	app.Get("/health", handler.GetStatus)
	return handler
}

// GetStatus always answers 200; a degraded dependency is reported in the body.
func (h *Health) GetStatus(c *fiber.Ctx) error {
	return c.JSON(h.Service.Check(c.UserContext()))
}
