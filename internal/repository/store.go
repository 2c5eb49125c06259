// Package repository persists cameras, the enrollment catalog, events and
// attendance records in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool the store needs. pgxmock implements
// it for tests.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	pool PgxPool

	// catalogVersion stamps each catalog snapshot so indexed matchers know
	// when to rebuild.
	catalogVersion atomic.Int64
}

func NewStore(pool PgxPool) *Store {
	return &Store{pool: pool}
}

// WriteAttendance inserts one attendance record. A second record for the
// same person, day and event maps to ErrDuplicateSuppressed via the unique
// index.
func (s *Store) WriteAttendance(ctx context.Context, rec *domain.AttendanceRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance_records
			(id, person_id, recorded_at, day, confidence, method, event_id, camera_id, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID,
		rec.PersonID,
		rec.Timestamp,
		attendanceDay(rec.Timestamp),
		rec.Confidence,
		rec.Method,
		rec.EventID,
		rec.CameraID,
		rec.Status,
		rec.Notes,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSuppressed.WithError(err)
	}
	if err != nil {
		return domain.ErrInternal.WithError(fmt.Errorf("insert attendance: %w", err))
	}
	return nil
}

// ReadActiveCatalog loads every active enrollment, grouped per person in
// enrollment order, as an immutable snapshot.
func (s *Store) ReadActiveCatalog(ctx context.Context) (*domain.Catalog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT person_id, embedding
		FROM face_catalog
		WHERE active
		ORDER BY enrolled_at, id`)
	if err != nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("query catalog: %w", err))
	}
	defer rows.Close()

	index := make(map[string]int)
	var entries []domain.CatalogEntry
	for rows.Next() {
		var personID string
		var embedding pgvector.Vector
		if err := rows.Scan(&personID, &embedding); err != nil {
			return nil, domain.ErrInternal.WithError(fmt.Errorf("scan catalog row: %w", err))
		}

		i, ok := index[personID]
		if !ok {
			i = len(entries)
			index[personID] = i
			entries = append(entries, domain.CatalogEntry{PersonID: personID})
		}
		entries[i].Embeddings = append(entries[i].Embeddings, embedding.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("iterate catalog: %w", err))
	}

	return domain.NewCatalog(entries, s.catalogVersion.Add(1)), nil
}

// ReadActiveEvents returns the events whose window contains now, with their
// participant allow-lists.
func (s *Store) ReadActiveEvents(ctx context.Context, now time.Time) ([]domain.EventRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.name, p.person_id
		FROM events e
		LEFT JOIN event_participants p ON p.event_id = e.id
		WHERE e.starts_at <= $1 AND e.ends_at > $1
		ORDER BY e.starts_at, e.id`, now)
	if err != nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("query events: %w", err))
	}
	defer rows.Close()

	index := make(map[uuid.UUID]int)
	var events []domain.EventRef
	for rows.Next() {
		var (
			id       uuid.UUID
			name     string
			personID *string
		)
		if err := rows.Scan(&id, &name, &personID); err != nil {
			return nil, domain.ErrInternal.WithError(fmt.Errorf("scan event row: %w", err))
		}

		i, ok := index[id]
		if !ok {
			i = len(events)
			index[id] = i
			events = append(events, domain.EventRef{ID: id, Name: name})
		}
		if personID != nil {
			events[i].Participants = append(events[i].Participants, *personID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("iterate events: %w", err))
	}
	return events, nil
}

const cameraColumns = `id, name, transport, stream_url, username, password, mode, active, status, last_seen`

// GetCamera fetches one camera by id.
func (s *Store) GetCamera(ctx context.Context, id uuid.UUID) (domain.Camera, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+cameraColumns+` FROM cameras WHERE id = $1`, id)

	cam, err := scanCamera(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Camera{}, domain.ErrCameraNotFound
	}
	if err != nil {
		return domain.Camera{}, domain.ErrInternal.WithError(fmt.Errorf("get camera: %w", err))
	}
	return cam, nil
}

// ListActiveCameras returns every camera flagged for monitoring.
func (s *Store) ListActiveCameras(ctx context.Context) ([]domain.Camera, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+cameraColumns+` FROM cameras WHERE active ORDER BY name`)
	if err != nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("query cameras: %w", err))
	}
	defer rows.Close()

	var cams []domain.Camera
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, domain.ErrInternal.WithError(fmt.Errorf("scan camera row: %w", err))
		}
		cams = append(cams, cam)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("iterate cameras: %w", err))
	}
	return cams, nil
}

// UpdateCameraStatus records the monitor-observed health of a camera.
func (s *Store) UpdateCameraStatus(ctx context.Context, id uuid.UUID, status string, lastSeen time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cameras SET status = $2, last_seen = $3 WHERE id = $1`,
		id, status, lastSeen)
	if err != nil {
		return domain.ErrInternal.WithError(fmt.Errorf("update camera status: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCameraNotFound
	}
	return nil
}

func scanCamera(row pgx.Row) (domain.Camera, error) {
	var cam domain.Camera
	err := row.Scan(
		&cam.ID,
		&cam.Name,
		&cam.Transport,
		&cam.StreamURL,
		&cam.Username,
		&cam.Password,
		&cam.Mode,
		&cam.Active,
		&cam.Status,
		&cam.LastSeen,
	)
	return cam, err
}

// attendanceDay buckets a timestamp into the calendar day of its own zone,
// the same wall clock the arrival schedule classifies against. Truncating
// in UTC would split an evening check-in from the next local morning.
func attendanceDay(ts time.Time) time.Time {
	year, month, day := ts.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, ts.Location())
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
