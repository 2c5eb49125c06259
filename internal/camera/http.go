package camera

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/presenca/internal/dahua"
)

// HTTPSource captures frames on demand through the camera's snapshot CGI
// endpoint. Nothing runs in the background; every pull is a fresh request.
type HTTPSource struct {
	client  *dahua.Client
	channel int
	open    atomic.Bool
}

func NewHTTPSource(client *dahua.Client) *HTTPSource {
	return &HTTPSource{client: client, channel: 1}
}

func (s *HTTPSource) Open(ctx context.Context) error {
	if err := s.client.TestConnection(ctx); err != nil {
		return err
	}
	s.open.Store(true)
	return nil
}

func (s *HTTPSource) PullFrame(ctx context.Context) (*Frame, error) {
	data, err := s.client.Snapshot(ctx, s.channel)
	if err != nil {
		return nil, err
	}
	return &Frame{Data: data, At: time.Now()}, nil
}

func (s *HTTPSource) PullSnapshot(ctx context.Context) ([]byte, error) {
	return s.client.Snapshot(ctx, s.channel)
}

func (s *HTTPSource) IsActive() bool {
	return s.open.Load()
}

func (s *HTTPSource) Close() error {
	s.open.Store(false)
	return nil
}
