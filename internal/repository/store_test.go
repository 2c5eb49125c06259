package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func embedding(first float32) pgvector.Vector {
	v := make([]float32, domain.EmbeddingDim)
	v[0] = first
	return pgvector.NewVector(v)
}

func TestStore_WriteAttendance(t *testing.T) {
	store, mock := newMockStore(t)

	rec := &domain.AttendanceRecord{
		PersonID:   "emp-001",
		Timestamp:  time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC),
		Confidence: 0.93,
		Method:     domain.MethodCameraPoll,
		Status:     domain.StatusOnTime,
	}

	mock.ExpectExec("INSERT INTO attendance_records").
		WithArgs(pgxmock.AnyArg(), "emp-001", rec.Timestamp, pgxmock.AnyArg(),
			0.93, domain.MethodCameraPoll, pgxmock.AnyArg(), pgxmock.AnyArg(), domain.StatusOnTime, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.WriteAttendance(context.Background(), rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WriteAttendance_DayFollowsLocalClock(t *testing.T) {
	store, mock := newMockStore(t)

	// An evening check-in east of UTC is already the next UTC day; the
	// dedup bucket must stay on the local calendar day.
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2026, 3, 2, 23, 30, 0, 0, loc)

	mock.ExpectExec("INSERT INTO attendance_records").
		WithArgs(pgxmock.AnyArg(), "emp-001", ts, time.Date(2026, 3, 2, 0, 0, 0, 0, loc),
			0.9, domain.MethodCameraEvent, pgxmock.AnyArg(), pgxmock.AnyArg(), domain.StatusHalfDay, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.WriteAttendance(context.Background(), &domain.AttendanceRecord{
		PersonID:   "emp-001",
		Timestamp:  ts,
		Confidence: 0.9,
		Method:     domain.MethodCameraEvent,
		Status:     domain.StatusHalfDay,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WriteAttendance_DuplicateDay(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO attendance_records").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "attendance_records_person_day_event_key"})

	err := store.WriteAttendance(context.Background(), &domain.AttendanceRecord{
		PersonID:  "emp-001",
		Timestamp: time.Now(),
		Method:    domain.MethodCameraEvent,
		Status:    domain.StatusLate,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateSuppressed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReadActiveCatalog(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT person_id, embedding").
		WillReturnRows(pgxmock.NewRows([]string{"person_id", "embedding"}).
			AddRow("emp-001", embedding(0.1)).
			AddRow("emp-002", embedding(0.5)).
			AddRow("emp-001", embedding(0.2)))

	cat, err := store.ReadActiveCatalog(context.Background())
	require.NoError(t, err)

	entries := cat.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "emp-001", entries[0].PersonID)
	assert.Len(t, entries[0].Embeddings, 2)
	assert.Equal(t, "emp-002", entries[1].PersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReadActiveCatalog_VersionAdvances(t *testing.T) {
	store, mock := newMockStore(t)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT person_id, embedding").
			WillReturnRows(pgxmock.NewRows([]string{"person_id", "embedding"}).
				AddRow("emp-001", embedding(0.1)))
	}

	first, err := store.ReadActiveCatalog(context.Background())
	require.NoError(t, err)
	second, err := store.ReadActiveCatalog(context.Background())
	require.NoError(t, err)
	assert.Greater(t, second.Version(), first.Version())
}

func TestStore_ReadActiveEvents(t *testing.T) {
	store, mock := newMockStore(t)

	open := uuid.New()
	restricted := uuid.New()
	alice := "emp-001"
	bob := "emp-002"
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT e.id, e.name, p.person_id").
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "person_id"}).
			AddRow(open, "all hands", nil).
			AddRow(restricted, "board meeting", &alice).
			AddRow(restricted, "board meeting", &bob))

	events, err := store.ReadActiveEvents(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "all hands", events[0].Name)
	assert.Empty(t, events[0].Participants)
	assert.True(t, events[0].Admits("anyone"))

	assert.Equal(t, []string{"emp-001", "emp-002"}, events[1].Participants)
	assert.False(t, events[1].Admits("emp-003"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func cameraRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "transport", "stream_url", "username", "password",
		"mode", "active", "status", "last_seen",
	})
}

func TestStore_GetCamera(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM cameras WHERE id").
		WithArgs(id).
		WillReturnRows(cameraRows().AddRow(
			id, "lobby", domain.TransportRTSP, "rtsp://cam/s1", "admin", "pw",
			domain.ModePolling, true, "online", nil))

	cam, err := store.GetCamera(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "lobby", cam.Name)
	assert.Equal(t, domain.TransportRTSP, cam.Transport)
	assert.Nil(t, cam.LastSeen)
}

func TestStore_GetCamera_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM cameras WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetCamera(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrCameraNotFound)
}

func TestStore_ListActiveCameras(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM cameras WHERE active").
		WillReturnRows(cameraRows().
			AddRow(uuid.New(), "entrance", domain.TransportHTTP, "http://cam1", "", "",
				domain.ModeEvent, true, "online", nil).
			AddRow(uuid.New(), "lobby", domain.TransportRTSP, "rtsp://cam2/s", "", "",
				domain.ModePolling, true, "offline", nil))

	cams, err := store.ListActiveCameras(context.Background())
	require.NoError(t, err)
	require.Len(t, cams, 2)
	assert.Equal(t, "entrance", cams[0].Name)
	assert.Equal(t, domain.ModePolling, cams[1].Mode)
}

func TestStore_UpdateCameraStatus(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	seen := time.Now()

	mock.ExpectExec("UPDATE cameras SET status").
		WithArgs(id, "online", seen).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.UpdateCameraStatus(context.Background(), id, "online", seen))

	mock.ExpectExec("UPDATE cameras SET status").
		WithArgs(id, "offline", seen).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, store.UpdateCameraStatus(context.Background(), id, "offline", seen), domain.ErrCameraNotFound)
}
