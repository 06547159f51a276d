package storage

import (
	"errors"
	"io"
	"strings"

	"github.com/amrahmed242/location-mocker/internal/gpx"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const maxTrackBytes = 10 << 20

var validate = validator.New()

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		req, err := uploadFromRequest(c)
		if err != nil {
			return err
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if len(req.GPXData) > maxTrackBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "track document too large")
		}

		track, err := svc.SaveTrack(c.Context(), req.Name, req.GPXData)
		if errors.Is(err, gpx.ErrMalformedDocument) || errors.Is(err, gpx.ErrEmptyTrack) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(track)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		tracks, err := svc.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(tracks)
	})

	r.Get("/:id/gpx", func(c *fiber.Ctx) error {
		document, err := svc.Document(c.Context(), c.Params("id"))
		if err != nil {
			return storeError(err)
		}
		c.Set(fiber.HeaderContentType, "application/gpx+xml")
		return c.SendString(document)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return storeError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// uploadFromRequest accepts either a JSON body or a multipart form with a
// "file" part; the file name stands in for a missing name.
func uploadFromRequest(c *fiber.Ctx) (uploadRequest, error) {
	var req uploadRequest
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&req); err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return req, nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if fh.Size > maxTrackBytes {
		return req, fiber.NewError(fiber.StatusRequestEntityTooLarge, "track document too large")
	}
	f, err := fh.Open()
	if err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req.Name = c.FormValue("name", fh.Filename)
	req.GPXData = string(data)
	return req, nil
}

func storeError(err error) error {
	if errors.Is(err, ErrTrackNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
