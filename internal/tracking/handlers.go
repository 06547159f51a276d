package tracking

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/runs", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", defaultRecentLimit)
		if limit <= 0 || limit > maxRecentLimit {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 200")
		}
		runs, err := svc.Recent(c.Context(), limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(runs)
	})

	r.Get("/runs/:id/summary", func(c *fiber.Ctx) error {
		summary, err := svc.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return storeError(err)
		}
		return c.JSON(summary)
	})

	r.Get("/runs/:id/points", func(c *fiber.Ctx) error {
		points, err := svc.Points(c.Context(), c.Params("id"))
		if err != nil {
			return storeError(err)
		}
		return c.JSON(points)
	})
}

func storeError(err error) error {
	if errors.Is(err, ErrRunNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
