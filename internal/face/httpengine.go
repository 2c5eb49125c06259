package face

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPEngineConfig holds the configuration for the detection sidecar client.
type HTTPEngineConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Model      string
	MaxFaces   int
	RetryCount int
}

// DefaultHTTPEngineConfig returns a config with sensible defaults.
func DefaultHTTPEngineConfig() HTTPEngineConfig {
	return HTTPEngineConfig{
		BaseURL:    "http://localhost:5000",
		Timeout:    30 * time.Second,
		Model:      "dlib_resnet",
		MaxFaces:   10,
		RetryCount: 3,
	}
}

// HTTPEngine implements Engine against the face detection sidecar's JSON
// API. The sidecar exposes POST /represent returning bounding boxes and
// 128-dimensional embeddings per face.
type HTTPEngine struct {
	httpClient *http.Client
	config     HTTPEngineConfig
}

func NewHTTPEngine(config HTTPEngineConfig) *HTTPEngine {
	if config.MaxFaces <= 0 {
		config.MaxFaces = DefaultHTTPEngineConfig().MaxFaces
	}
	return &HTTPEngine{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

type representRequest struct {
	Img      string `json:"img"`
	Model    string `json:"model"`
	Detector string `json:"detector"`
}

type representResponse struct {
	Results []struct {
		Embedding  []float32 `json:"embedding"`
		FacialArea struct {
			X int `json:"x"`
			Y int `json:"y"`
			W int `json:"w"`
			H int `json:"h"`
		} `json:"facial_area"`
	} `json:"results"`
}

// Detect calls the sidecar with the requested detector quality. Results are
// capped at MaxFaces; embeddings with the wrong dimensionality are dropped.
func (e *HTTPEngine) Detect(ctx context.Context, img []byte, mode DetectorMode) ([]Detection, error) {
	req := representRequest{
		Img:      base64.StdEncoding.EncodeToString(img),
		Model:    e.config.Model,
		Detector: string(mode),
	}

	var resp representResponse
	if err := e.doRequestWithRetry(ctx, "POST", "/represent", req, &resp); err != nil {
		return nil, fmt.Errorf("represent: %w", err)
	}

	results := resp.Results
	if len(results) > e.config.MaxFaces {
		results = results[:e.config.MaxFaces]
	}

	detections := make([]Detection, 0, len(results))
	for _, r := range results {
		if err := ValidateEmbedding(r.Embedding); err != nil {
			continue
		}
		detections = append(detections, Detection{
			Box: BoundingBox{
				X:      r.FacialArea.X,
				Y:      r.FacialArea.Y,
				Width:  r.FacialArea.W,
				Height: r.FacialArea.H,
			},
			Embedding: r.Embedding,
		})
	}

	return detections, nil
}

// maxBackoff is the maximum backoff duration for retries
const maxBackoff = 30 * time.Second

// calculateBackoff returns 1s, 2s, 4s, 8s, etc. up to maxBackoff.
func calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	seconds := 1
	for i := 1; i < attempt && i < 6; i++ {
		seconds *= 2
	}
	return time.Duration(seconds) * time.Second
}

func (e *HTTPEngine) doRequestWithRetry(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= e.config.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = e.doRequest(ctx, method, path, body, result)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Client errors (4xx) will not heal on retry
		if isClientError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("face engine unavailable: %w", lastErr)
}

func isClientError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for status := 400; status < 500; status++ {
		if strings.Contains(errStr, fmt.Sprintf("status %d", status)) {
			return true
		}
	}
	return false
}

func (e *HTTPEngine) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	url := e.config.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("face engine returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
