package mocker

import (
	"context"
	"errors"
	"log"

	"github.com/amrahmed242/location-mocker/internal/auth"
	"github.com/amrahmed242/location-mocker/internal/gpx"
	"github.com/amrahmed242/location-mocker/internal/playback"
	"github.com/amrahmed242/location-mocker/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// TrackSource resolves stored tracks for start requests that name a track_id.
type TrackSource interface {
	Document(ctx context.Context, id string) (string, error)
}

// RegisterRoutes mounts the control surface. tracks may be nil, in which case
// only inline gpx_data can be started.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler, tracks TrackSource) {
	r.Get("/initialize", func(c *fiber.Ctx) error {
		return c.JSON(resultResponse{OK: true})
	})

	r.Get("/enabled", func(c *fiber.Ctx) error {
		ok, err := svc.MockingEnabled(c.UserContext())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"enabled": ok})
	})

	r.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(svc.Status())
	})

	r.Post("/start", authMiddleware, func(c *fiber.Ctx) error {
		var req startRequest
		if err := bindRequest(c, &req); err != nil {
			return writeError(c, err)
		}
		document, err := resolveDocument(c.UserContext(), req, tracks)
		if err != nil {
			return writeError(c, err)
		}
		status, err := svc.Start(c.UserContext(), document, req.PlaybackSpeed)
		if err != nil {
			return writeError(c, err)
		}
		log.Printf("playback %s started (%d points at %gx) by %s", status.SessionID, status.Total, status.Speed, operatorName(c))
		return c.Status(fiber.StatusCreated).JSON(status)
	})

	r.Post("/speed", authMiddleware, func(c *fiber.Ctx) error {
		var req speedRequest
		if err := bindRequest(c, &req); err != nil {
			return writeError(c, err)
		}
		ok, err := svc.UpdateSpeed(c.UserContext(), req.PlaybackSpeed)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(resultResponse{OK: ok})
	})

	r.Post("/stop", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Stop(c.UserContext()); err != nil {
			return writeError(c, err)
		}
		log.Printf("playback stopped by %s", operatorName(c))
		return c.JSON(resultResponse{OK: true})
	})

	r.Post("/pause", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(resultResponse{OK: svc.Pause(c.UserContext())})
	})

	r.Post("/resume", authMiddleware, func(c *fiber.Ctx) error {
		var req speedRequest
		if err := bindRequest(c, &req); err != nil {
			return writeError(c, err)
		}
		ok, err := svc.Resume(c.UserContext(), req.PlaybackSpeed)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(resultResponse{OK: ok})
	})
}

func operatorName(c *fiber.Ctx) string {
	if op := auth.Operator(c); op != "" {
		return op
	}
	return "anonymous"
}

func resolveDocument(ctx context.Context, req startRequest, tracks TrackSource) (string, error) {
	if req.GPXData != "" {
		return req.GPXData, nil
	}
	if tracks == nil {
		return "", newError(CodeInvalidRequest, "stored tracks are not available", nil)
	}
	document, err := tracks.Document(ctx, req.TrackID)
	if errors.Is(err, storage.ErrTrackNotFound) {
		return "", newError(CodeTrackNotFound, err.Error(), err)
	}
	if err != nil {
		return "", newError(CodeStartMockError, "failed to load track", err)
	}
	return document, nil
}

// bindRequest decodes an optional JSON body into req and validates it.
func bindRequest(c *fiber.Ctx, req any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return newError(CodeInvalidRequest, err.Error(), err)
		}
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "PlaybackSpeed" {
			return newError(CodeInvalidSpeed, playback.ErrInvalidSpeed.Error(), err)
		}
		return newError(CodeInvalidRequest, err.Error(), err)
	}
	return nil
}

func writeError(c *fiber.Ctx, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(statusFor(e)).JSON(e)
}

func statusFor(e *Error) int {
	switch e.Code {
	case CodeInvalidSpeed, CodeInvalidRequest:
		return fiber.StatusBadRequest
	case CodeMockNotEnabled:
		return fiber.StatusPreconditionFailed
	case CodeTrackNotFound:
		return fiber.StatusNotFound
	case CodeStartMockError:
		if errors.Is(e, gpx.ErrMalformedDocument) || errors.Is(e, gpx.ErrEmptyTrack) {
			return fiber.StatusUnprocessableEntity
		}
	}
	return fiber.StatusInternalServerError
}
