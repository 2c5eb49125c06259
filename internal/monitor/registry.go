package monitor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// Factory builds a monitor for a camera. The registry owns the lifecycle
// of whatever it returns.
type Factory func(cam domain.Camera) (*Monitor, error)

// Registry tracks at most one monitor per camera. Failed and stopped
// monitors stay registered so their state remains visible until replaced.
type Registry struct {
	factory Factory
	store   Store
	log     *slog.Logger

	mu       sync.Mutex
	monitors map[uuid.UUID]*Monitor
}

func NewRegistry(factory Factory, store Store, log *slog.Logger) *Registry {
	return &Registry{
		factory:  factory,
		store:    store,
		log:      log,
		monitors: make(map[uuid.UUID]*Monitor),
	}
}

// Start launches monitoring for the camera. Starting an already-running
// camera is a no-op; a failed or stopped monitor is replaced with a fresh
// one.
func (r *Registry) Start(ctx context.Context, cam domain.Camera) error {
	if !cam.Active {
		return domain.ErrCameraInactive
	}

	r.mu.Lock()
	if existing, ok := r.monitors[cam.ID]; ok {
		switch existing.State() {
		case StateRunning, StateStarting:
			r.mu.Unlock()
			return nil
		}
	}

	m, err := r.factory(cam)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	// Claim the monitor before it becomes visible, so a concurrent Start
	// for the same camera sees StateStarting and backs off instead of
	// replacing it and orphaning its loop.
	m.begin()
	r.monitors[cam.ID] = m
	r.mu.Unlock()

	return m.setup(ctx)
}

// Stop halts the camera's monitor if one is running. The entry stays in
// the registry with StateStopped.
func (r *Registry) Stop(id uuid.UUID) error {
	r.mu.Lock()
	m, ok := r.monitors[id]
	r.mu.Unlock()
	if !ok {
		return domain.ErrCameraNotFound
	}
	m.Stop()
	return nil
}

// StopAll halts every monitor, in parallel since each Stop blocks on its
// loop draining.
func (r *Registry) StopAll() {
	r.mu.Lock()
	monitors := make([]*Monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		monitors = append(monitors, m)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, m := range monitors {
		wg.Add(1)
		go func(m *Monitor) {
			defer wg.Done()
			m.Stop()
		}(m)
	}
	wg.Wait()
}

// ReloadCatalogs loads one fresh catalog snapshot and pushes it to every
// monitor, so all cameras switch enrollment generations together.
func (r *Registry) ReloadCatalogs(ctx context.Context) (int, error) {
	cat, err := r.store.ReadActiveCatalog(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.monitors {
		m.ReloadCatalog(cat)
	}
	r.log.Info("catalog reloaded",
		slog.Int("identities", cat.Size()),
		slog.Int("monitors", len(r.monitors)))
	return cat.Size(), nil
}

// Status is a point-in-time view of one monitor.
type Status struct {
	State       State `json:"state"`
	CatalogSize int   `json:"catalog_size"`
}

// Status reports the lifecycle state of every registered monitor.
func (r *Registry) Status() map[uuid.UUID]Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]Status, len(r.monitors))
	for id, m := range r.monitors {
		out[id] = Status{State: m.State(), CatalogSize: m.CatalogSize()}
	}
	return out
}
