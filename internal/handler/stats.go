package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/soundwall/api/internal/counter"
	"github.com/soundwall/api/pkg/response"
)

// StatsHandler exposes the global images-produced total
type StatsHandler struct {
	counter counter.Counter
}

func NewStatsHandler(c counter.Counter) *StatsHandler {
	return &StatsHandler{counter: c}
}

// Stats handles GET /api/stats
func (h *StatsHandler) Stats(c *fiber.Ctx) error {
	total, err := h.counter.Load(c.Context())
	if err != nil {
		return response.ServiceError(c, "Could not load statistics")
	}
	return response.OK(c, fiber.Map{
		"images_produced": total,
	})
}
