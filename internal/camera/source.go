// Package camera turns heterogeneous camera transports (RTSP, HTTP
// snapshot, local webcam) into a single frame-pulling interface for the
// monitors.
package camera

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/presenca/internal/dahua"
	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// Frame is one captured image and the moment it left the camera.
type Frame struct {
	Data []byte
	At   time.Time
}

// Cell is a single-slot holder for the most recent frame. Writers overwrite
// unconditionally; readers always get the latest complete frame or nil.
type Cell struct {
	p atomic.Pointer[Frame]
}

func (c *Cell) Store(f *Frame) { c.p.Store(f) }
func (c *Cell) Load() *Frame   { return c.p.Load() }

// Source is one camera the monitor can pull frames from.
type Source interface {
	// Open establishes the transport. For stream transports it starts the
	// background capture; for snapshot transports it verifies reachability.
	Open(ctx context.Context) error
	// PullFrame returns the freshest available frame with its capture time.
	PullFrame(ctx context.Context) (*Frame, error)
	// PullSnapshot returns the freshest available frame as encoded image
	// bytes.
	PullSnapshot(ctx context.Context) ([]byte, error)
	// IsActive reports whether the source is currently delivering frames.
	IsActive() bool
	Close() error
}

type Options struct {
	SnapshotTimeout time.Duration
	LivenessWindow  time.Duration
}

// NewSource builds the right Source for the camera's transport.
func NewSource(cam domain.Camera, opts Options) (Source, error) {
	switch cam.Transport {
	case domain.TransportRTSP:
		streamURL, err := withCredentials(cam.StreamURL, cam.Username, cam.Password)
		if err != nil {
			return nil, err
		}
		return NewFFmpegSource(FFmpegConfig{
			Input:          streamURL,
			Transport:      cam.Transport,
			LivenessWindow: opts.LivenessWindow,
		}), nil
	case domain.TransportWebcam:
		return NewFFmpegSource(FFmpegConfig{
			Input:          cam.StreamURL,
			Transport:      cam.Transport,
			LivenessWindow: opts.LivenessWindow,
		}), nil
	case domain.TransportHTTP:
		return NewHTTPSource(dahua.NewClient(dahua.Config{
			BaseURL:  cam.StreamURL,
			Username: cam.Username,
			Password: cam.Password,
			Timeout:  opts.SnapshotTimeout,
		})), nil
	default:
		return nil, domain.ErrBadRequest.WithError(fmt.Errorf("unknown transport %q", cam.Transport))
	}
}

// withCredentials injects the camera account into the stream URI when the
// URI itself carries none.
func withCredentials(rawURL, username, password string) (string, error) {
	if username == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", domain.ErrBadRequest.WithError(fmt.Errorf("parse stream url: %w", err))
	}
	if u.User == nil {
		u.User = url.UserPassword(username, password)
	}
	return u.String(), nil
}
