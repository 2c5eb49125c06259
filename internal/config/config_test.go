package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/presenca")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 0.6, cfg.FaceTolerance)
	assert.Equal(t, 0.75, cfg.LivenessThreshold)
	assert.True(t, cfg.EnableLiveness)
	assert.False(t, cfg.IndexedMatcher)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.RecognitionCooldown)
	assert.Equal(t, "09:00", cfg.WorkStart)
	assert.Equal(t, 15*time.Minute, cfg.GracePeriod)
	assert.Equal(t, "13:00", cfg.HalfDayCutoff)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidWorkStart(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/presenca")
	t.Setenv("WORK_START", "25:99")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"09:00", 9 * time.Hour, false},
		{"13:30", 13*time.Hour + 30*time.Minute, false},
		{"00:00", 0, false},
		{"23:59", 23*time.Hour + 59*time.Minute, false},
		{"9am", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
