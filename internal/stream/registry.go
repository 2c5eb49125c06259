// Package stream serves on-demand preview frames to operators without
// disturbing the recognition monitors: each camera gets at most one shared
// preview source, created lazily and evicted when it dies.
package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/camera"
	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// SourceFactory opens a fresh capture source for a camera.
type SourceFactory func(cam domain.Camera) (camera.Source, error)

type Registry struct {
	factory SourceFactory
	log     *slog.Logger

	mu      sync.Mutex
	sources map[uuid.UUID]camera.Source
}

func NewRegistry(factory SourceFactory, log *slog.Logger) *Registry {
	return &Registry{
		factory: factory,
		log:     log,
		sources: make(map[uuid.UUID]camera.Source),
	}
}

// Snapshot returns the freshest preview frame for the camera, creating or
// reviving its capture source as needed.
func (r *Registry) Snapshot(ctx context.Context, cam domain.Camera) ([]byte, error) {
	src, err := r.acquire(ctx, cam)
	if err != nil {
		return nil, err
	}

	frame, err := src.PullSnapshot(ctx)
	if err != nil {
		// A pull failure usually means the stream died underneath us. Evict
		// so the next request starts clean.
		r.evict(cam.ID, src)
		return nil, err
	}
	return frame, nil
}

// acquire returns the camera's live source, replacing one that went dead.
func (r *Registry) acquire(ctx context.Context, cam domain.Camera) (camera.Source, error) {
	r.mu.Lock()
	src, ok := r.sources[cam.ID]
	r.mu.Unlock()

	if ok && src.IsActive() {
		return src, nil
	}
	if ok {
		r.evict(cam.ID, src)
		r.log.Info("evicted dead preview stream", slog.String("camera", cam.Name))
	}

	fresh, err := r.factory(cam)
	if err != nil {
		return nil, err
	}
	if err := fresh.Open(ctx); err != nil {
		_ = fresh.Close()
		return nil, domain.ErrStreamUnavailable.WithError(err)
	}

	r.mu.Lock()
	// Another request may have raced us here; prefer theirs.
	if existing, ok := r.sources[cam.ID]; ok && existing.IsActive() {
		r.mu.Unlock()
		_ = fresh.Close()
		return existing, nil
	}
	r.sources[cam.ID] = fresh
	r.mu.Unlock()
	return fresh, nil
}

func (r *Registry) evict(id uuid.UUID, src camera.Source) {
	r.mu.Lock()
	if r.sources[id] == src {
		delete(r.sources, id)
	}
	r.mu.Unlock()
	_ = src.Close()
}

// Count reports how many preview sources are currently held.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}

// StopAll closes every preview source.
func (r *Registry) StopAll() {
	r.mu.Lock()
	sources := r.sources
	r.sources = make(map[uuid.UUID]camera.Source)
	r.mu.Unlock()

	for _, src := range sources {
		_ = src.Close()
	}
}
