package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/stream"
)

type StreamHandler struct {
	streams *stream.Registry
	cameras CameraStore
}

func NewStreamHandler(streams *stream.Registry, cameras CameraStore) *StreamHandler {
	return &StreamHandler{streams: streams, cameras: cameras}
}

// Preview returns the freshest frame from the camera as a JPEG.
func (h *StreamHandler) Preview(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	cam, err := h.cameras.GetCamera(c.Context(), id)
	if err != nil {
		return err
	}

	frame, err := h.streams.Snapshot(c.Context(), cam)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(frame)
}
