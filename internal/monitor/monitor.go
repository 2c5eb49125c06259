// Package monitor runs one recognition loop per camera and turns face
// sightings into deduplicated attendance records.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/camera"
	"github.com/saturnino-fabrica-de-software/presenca/internal/dahua"
	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/face"
	"github.com/saturnino-fabrica-de-software/presenca/internal/imaging"
	"github.com/saturnino-fabrica-de-software/presenca/internal/liveness"
)

// cropPad is the pixel margin added around a detected face before the
// liveness analysis, so context like ears and hairline stays in the crop.
const cropPad = 20

// stopTimeout bounds how long Stop waits for the loop goroutine.
const stopTimeout = 5 * time.Second

// State is the lifecycle phase of a camera monitor.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Store is the persistence surface the monitor depends on.
type Store interface {
	WriteAttendance(ctx context.Context, rec *domain.AttendanceRecord) error
	ReadActiveCatalog(ctx context.Context) (*domain.Catalog, error)
	ReadActiveEvents(ctx context.Context, now time.Time) ([]domain.EventRef, error)
	UpdateCameraStatus(ctx context.Context, id uuid.UUID, status string, lastSeen time.Time) error
}

type Config struct {
	PollInterval time.Duration
	Cooldown     time.Duration
	Schedule     Schedule
	// StartRetries is how many extra camera open attempts setup makes
	// before the monitor is declared failed.
	StartRetries    int
	StartRetryDelay time.Duration
}

// Deps bundles the collaborators a monitor drives. Events and Vendor may be
// nil for cameras that are not Dahua-compatible.
type Deps struct {
	Source  camera.Source
	Engine  face.Engine
	Matcher face.Matcher
	Scorer  *liveness.Scorer
	Store   Store
	Events  *dahua.EventClient
	Vendor  *dahua.Client
}

// Monitor owns the recognition loop for a single camera.
type Monitor struct {
	cam  domain.Camera
	deps Deps
	cfg  Config
	log  *slog.Logger

	cooldown *CooldownTracker
	catalog  atomic.Pointer[domain.Catalog]
	now      func() time.Time

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cam domain.Camera, deps Deps, cfg Config, log *slog.Logger) *Monitor {
	return &Monitor{
		cam:      cam,
		deps:     deps,
		cfg:      cfg,
		log:      log.With(slog.String("camera", cam.Name), slog.String("camera_id", cam.ID.String())),
		cooldown: NewCooldownTracker(cfg.Cooldown),
		now:      time.Now,
		state:    StateIdle,
	}
}

// Start opens the camera, loads the catalog snapshot and launches the
// recognition loop. A failed start leaves the monitor in StateFailed.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.begin() {
		return nil
	}
	return m.setup(ctx)
}

// begin claims the monitor for starting. Returns false when another caller
// already holds it, so Start stays idempotent.
func (m *Monitor) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateRunning, StateStarting:
		return false
	}
	m.state = StateStarting
	return true
}

// setup runs the slow half of Start: camera open, provisioning, catalog
// load, loop launch. The caller must hold the claim from begin.
func (m *Monitor) setup(ctx context.Context) error {
	if err := m.openSource(ctx); err != nil {
		m.setState(StateFailed)
		return domain.ErrMonitorFailed.WithError(err)
	}
	m.provisionCamera(ctx)

	cat, err := m.deps.Store.ReadActiveCatalog(ctx)
	if err != nil {
		_ = m.deps.Source.Close()
		m.setState(StateFailed)
		return domain.ErrMonitorFailed.WithError(err)
	}
	m.catalog.Store(cat)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel, m.done = cancel, done
	m.state = StateRunning
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.run(runCtx)
	}()

	m.log.Info("camera monitor started", slog.String("mode", string(m.cam.Mode)))
	return nil
}

// openSource retries the camera open a few times so a briefly rebooting
// camera does not end up failed.
func (m *Monitor) openSource(ctx context.Context) error {
	delay := m.cfg.StartRetryDelay
	if delay == 0 {
		delay = time.Second
	}

	var err error
	for attempt := 0; attempt <= m.cfg.StartRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = m.deps.Source.Open(ctx); err == nil {
			return nil
		}
		m.log.Warn("camera open failed", slog.Int("attempt", attempt+1), slog.Any("error", err))
	}
	return err
}

// provisionCamera pushes the device settings recognition depends on: the
// on-camera face analysis rule for event mode, and overlays off so burned-in
// titles do not pollute frames. Best effort; monitoring proceeds either way.
func (m *Monitor) provisionCamera(ctx context.Context) {
	if m.deps.Vendor == nil {
		return
	}
	if m.cam.Mode == domain.ModeEvent {
		if err := m.deps.Vendor.EnableFaceDetection(ctx, 0); err != nil {
			m.log.Warn("enable face detection", slog.Any("error", err))
		}
	}
	if err := m.deps.Vendor.SetOSD(ctx, 0, false); err != nil {
		m.log.Warn("disable osd overlay", slog.Any("error", err))
	}
}

func (m *Monitor) run(ctx context.Context) {
	if m.cam.Mode == domain.ModeEvent && m.deps.Events != nil {
		m.runEventDriven(ctx)
		return
	}
	m.runPolling(ctx)
}

func (m *Monitor) runPolling(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.recognizePass(ctx, domain.MethodCameraPoll)
		}
	}
}

func (m *Monitor) runEventDriven(ctx context.Context) {
	err := m.deps.Events.Subscribe(ctx, dahua.FaceEventCodes, func(e dahua.Event) {
		if e.Action == "Stop" {
			return
		}
		m.recognizePass(ctx, domain.MethodCameraEvent)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		m.log.Error("event subscription ended", slog.Any("error", err))
	}
}

// recognizePass runs one full capture-to-record cycle. Every step failure
// is terminal for the pass, never for the monitor.
func (m *Monitor) recognizePass(ctx context.Context, method domain.AttendanceMethod) {
	now := m.now()

	events, err := m.deps.Store.ReadActiveEvents(ctx, now)
	if err != nil {
		m.log.Error("read active events", slog.Any("error", err))
		return
	}
	// Polling burns snapshots continuously, so it only runs while a
	// scheduled event wants it. Camera pushes are cheap and always handled.
	if method == domain.MethodCameraPoll && len(events) == 0 {
		return
	}

	frame, err := m.deps.Source.PullSnapshot(ctx)
	if err != nil {
		m.log.Warn("snapshot failed", slog.Any("error", err))
		m.reportHealth(ctx, "offline", now)
		return
	}
	m.reportHealth(ctx, "online", now)

	img, err := imaging.Decode(frame)
	if err != nil {
		m.log.Warn("frame decode failed", slog.Any("error", err))
		return
	}

	detections, err := face.DetectWithFallback(ctx, m.deps.Engine, frame)
	if err != nil {
		m.log.Error("face detection failed", slog.Any("error", err))
		return
	}
	if len(detections) == 0 {
		return
	}

	catalog := m.catalog.Load()
	recorded := make(map[string]bool)

	for _, det := range detections {
		crop := imaging.CropPad(img, det.Box.Rect(), cropPad)
		verdict := m.deps.Scorer.Score(crop)
		if !verdict.Live {
			m.log.Info("liveness rejected face",
				slog.Float64("score", verdict.Score))
			continue
		}

		match, err := m.deps.Matcher.Match(det.Embedding, catalog)
		if errors.Is(err, domain.ErrNoMatch) {
			continue
		}
		if err != nil {
			m.log.Warn("match failed", slog.Any("error", err))
			continue
		}

		if recorded[match.PersonID] {
			continue
		}
		if !m.cooldown.Stale(m.cam.ID.String(), match.PersonID, now) {
			continue
		}

		eventID, admitted := admittingEvent(events, match.PersonID)
		if method == domain.MethodCameraPoll && !admitted {
			continue
		}

		rec := &domain.AttendanceRecord{
			PersonID:   match.PersonID,
			Timestamp:  now,
			Confidence: match.Confidence,
			Method:     method,
			EventID:    eventID,
			CameraID:   &m.cam.ID,
			Status:     m.cfg.Schedule.Classify(now),
		}
		if verdict.Indeterminate {
			rec.Notes = "liveness indeterminate"
		}

		err = m.deps.Store.WriteAttendance(ctx, rec)
		switch {
		case errors.Is(err, domain.ErrDuplicateSuppressed):
			// Already recorded for this day and event. Still start a
			// cooldown so the same
			// sighting does not hammer the database every pass.
			m.cooldown.Touch(m.cam.ID.String(), match.PersonID, now)
		case err != nil:
			m.log.Error("write attendance", slog.Any("error", err),
				slog.String("person_id", match.PersonID))
		default:
			m.cooldown.Touch(m.cam.ID.String(), match.PersonID, now)
			recorded[match.PersonID] = true
			m.log.Info("attendance recorded",
				slog.String("person_id", match.PersonID),
				slog.String("status", string(rec.Status)),
				slog.Float64("confidence", rec.Confidence))
		}
	}
}

// admittingEvent returns the first active event that admits the identity.
func admittingEvent(events []domain.EventRef, personID string) (*uuid.UUID, bool) {
	for _, e := range events {
		if e.Admits(personID) {
			id := e.ID
			return &id, true
		}
	}
	return nil, false
}

func (m *Monitor) reportHealth(ctx context.Context, status string, now time.Time) {
	if err := m.deps.Store.UpdateCameraStatus(ctx, m.cam.ID, status, now); err != nil {
		m.log.Warn("update camera status", slog.Any("error", err))
	}
}

// Stop shuts the loop down and waits for it, bounded by stopTimeout.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	m.state = StateStopping
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		m.log.Warn("monitor loop did not stop in time")
	}
	_ = m.deps.Source.Close()
	m.setState(StateStopped)
	m.log.Info("camera monitor stopped")
}

// ReloadCatalog swaps in a new catalog snapshot. In-flight passes keep the
// snapshot they started with.
func (m *Monitor) ReloadCatalog(cat *domain.Catalog) {
	m.catalog.Store(cat)
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CatalogSize reports how many identities the current snapshot holds.
func (m *Monitor) CatalogSize() int {
	return m.catalog.Load().Size()
}

func (m *Monitor) Camera() domain.Camera {
	return m.cam
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
