package camera

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// defaultLivenessWindow bounds how old the latest frame may be before the
// stream counts as stalled.
const defaultLivenessWindow = 5 * time.Second

type FFmpegConfig struct {
	Input          string
	Transport      domain.Transport
	LivenessWindow time.Duration
}

// FFmpegSource decodes an RTSP stream or local webcam through an ffmpeg
// subprocess emitting MJPEG on stdout. Only the newest frame is kept; the
// monitor pulls at its own pace and stale frames are dropped on the floor.
type FFmpegSource struct {
	cfg  FFmpegConfig
	cell Cell

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

func NewFFmpegSource(cfg FFmpegConfig) *FFmpegSource {
	if cfg.LivenessWindow == 0 {
		cfg.LivenessWindow = defaultLivenessWindow
	}
	return &FFmpegSource{cfg: cfg, now: time.Now}
}

// Open starts the capture subprocess. The stream outlives the opening
// request, so it is tied to the source lifecycle rather than ctx.
func (s *FFmpegSource) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, "ffmpeg", s.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return domain.ErrStreamUnavailable.WithError(err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return domain.ErrStreamUnavailable.WithError(fmt.Errorf("start ffmpeg: %w", err))
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.readFrames(stdout)
		_ = cmd.Wait()
	}()
	return nil
}

func (s *FFmpegSource) args() []string {
	var args []string
	switch s.cfg.Transport {
	case domain.TransportWebcam:
		args = []string{"-f", "v4l2", "-i", s.cfg.Input}
	default:
		args = []string{"-rtsp_transport", "tcp", "-i", s.cfg.Input}
	}
	return append(args,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "5",
		"-loglevel", "error",
		"-",
	)
}

// readFrames splits the MJPEG byte stream on JPEG start/end markers and
// publishes each complete frame to the cell.
func (s *FFmpegSource) readFrames(r io.Reader) {
	var buf bytes.Buffer
	chunk := make([]byte, 64*1024)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			for {
				frame, rest, ok := splitJPEG(buf.Bytes())
				if !ok {
					break
				}
				s.cell.Store(&Frame{Data: frame, At: s.now()})
				remaining := make([]byte, len(rest))
				copy(remaining, rest)
				buf.Reset()
				buf.Write(remaining)
			}
			// Drop garbage if no SOI marker ever arrives.
			if buf.Len() > 16*1024*1024 {
				buf.Reset()
			}
		}
		if err != nil {
			return
		}
	}
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG extracts the first complete JPEG from data. It returns the
// frame, the unconsumed remainder and whether a frame was found.
func splitJPEG(data []byte) (frame, rest []byte, ok bool) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		return nil, data, false
	}
	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		return nil, data, false
	}
	end = start + 2 + end + 2

	frame = make([]byte, end-start)
	copy(frame, data[start:end])
	return frame, data[end:], true
}

func (s *FFmpegSource) PullFrame(_ context.Context) (*Frame, error) {
	frame := s.cell.Load()
	if frame == nil {
		return nil, domain.ErrStreamUnavailable
	}
	if s.now().Sub(frame.At) > s.cfg.LivenessWindow {
		return nil, domain.ErrStreamUnavailable.WithError(fmt.Errorf("latest frame is %s old", s.now().Sub(frame.At).Truncate(time.Millisecond)))
	}
	return frame, nil
}

func (s *FFmpegSource) PullSnapshot(ctx context.Context) ([]byte, error) {
	frame, err := s.PullFrame(ctx)
	if err != nil {
		return nil, err
	}
	return frame.Data, nil
}

func (s *FFmpegSource) IsActive() bool {
	s.mu.Lock()
	running := s.cancel != nil
	s.mu.Unlock()
	if !running {
		return false
	}
	frame := s.cell.Load()
	return frame != nil && s.now().Sub(frame.At) <= s.cfg.LivenessWindow
}

func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
	}
	return nil
}
