package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/monitor"
)

// CameraStore is the camera lookup surface the handlers need.
type CameraStore interface {
	GetCamera(ctx context.Context, id uuid.UUID) (domain.Camera, error)
	ListActiveCameras(ctx context.Context) ([]domain.Camera, error)
}

type MonitoringHandler struct {
	registry *monitor.Registry
	cameras  CameraStore
	logger   *slog.Logger
}

func NewMonitoringHandler(registry *monitor.Registry, cameras CameraStore, logger *slog.Logger) *MonitoringHandler {
	return &MonitoringHandler{registry: registry, cameras: cameras, logger: logger}
}

// Start launches monitoring for one camera.
func (h *MonitoringHandler) Start(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	cam, err := h.cameras.GetCamera(c.Context(), id)
	if err != nil {
		return err
	}
	if err := h.registry.Start(c.Context(), cam); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"camera_id": cam.ID,
		"state":     h.registry.Status()[cam.ID].State,
	})
}

// Stop halts monitoring for one camera.
func (h *MonitoringHandler) Stop(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if err := h.registry.Stop(id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"camera_id": id,
		"state":     h.registry.Status()[id].State,
	})
}

type startAllResponse struct {
	Started int               `json:"started"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// StartAll launches monitoring for every active camera. Per-camera failures
// are reported, not fatal: one unreachable camera must not block the rest
// of the fleet.
func (h *MonitoringHandler) StartAll(c *fiber.Ctx) error {
	cams, err := h.cameras.ListActiveCameras(c.Context())
	if err != nil {
		return err
	}

	resp := startAllResponse{Failed: make(map[string]string)}
	for _, cam := range cams {
		if err := h.registry.Start(c.Context(), cam); err != nil {
			h.logger.Warn("camera failed to start",
				slog.String("camera", cam.Name),
				slog.Any("error", err))
			resp.Failed[cam.ID.String()] = err.Error()
			continue
		}
		resp.Started++
	}
	if len(resp.Failed) == 0 {
		resp.Failed = nil
	}
	return c.JSON(resp)
}

// ReloadCatalog refreshes the enrollment snapshot on every running monitor.
func (h *MonitoringHandler) ReloadCatalog(c *fiber.Ctx) error {
	size, err := h.registry.ReloadCatalogs(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"identities": size})
}

type monitorStatus struct {
	CameraID    uuid.UUID     `json:"camera_id"`
	State       monitor.State `json:"state"`
	CatalogSize int           `json:"catalog_size"`
}

// Status reports the lifecycle state of every registered monitor.
func (h *MonitoringHandler) Status(c *fiber.Ctx) error {
	states := h.registry.Status()
	out := make([]monitorStatus, 0, len(states))
	for id, st := range states {
		out = append(out, monitorStatus{CameraID: id, State: st.State, CatalogSize: st.CatalogSize})
	}
	return c.JSON(fiber.Map{"monitors": out})
}
