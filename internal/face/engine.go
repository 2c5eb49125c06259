package face

import (
	"context"
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// DetectorMode selects the detection quality/latency trade-off.
type DetectorMode string

const (
	// DetectorFast is the default HOG-style detector: cheap, good on
	// frontal faces.
	DetectorFast DetectorMode = "hog"
	// DetectorAccurate is the CNN detector: slower, materially better on
	// non-frontal and partially occluded faces.
	DetectorAccurate DetectorMode = "cnn"
)

// BoundingBox is the face area within the source image, in pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the box into an image.Rectangle for cropping.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Detection is one face found in a frame: its location plus the raw
// 128-dimensional embedding. Detections are ephemeral and never persisted.
type Detection struct {
	Box       BoundingBox
	Embedding []float32
}

// Engine detects faces and extracts embeddings from an encoded image.
// Implementations must tolerate zero detections and cap the result count.
type Engine interface {
	Detect(ctx context.Context, img []byte, mode DetectorMode) ([]Detection, error)
}

// DetectWithFallback runs the fast detector first and retries in accurate
// mode only when the fast pass finds nothing. The second pass improves
// recall on non-frontal faces at bounded extra latency.
func DetectWithFallback(ctx context.Context, engine Engine, img []byte) ([]Detection, error) {
	detections, err := engine.Detect(ctx, img, DetectorFast)
	if err != nil {
		return nil, fmt.Errorf("detect (fast): %w", err)
	}
	if len(detections) > 0 {
		return detections, nil
	}

	detections, err = engine.Detect(ctx, img, DetectorAccurate)
	if err != nil {
		return nil, fmt.Errorf("detect (accurate): %w", err)
	}
	return detections, nil
}

// ValidateEmbedding rejects vectors that do not match the catalog
// dimensionality.
func ValidateEmbedding(embedding []float32) error {
	if len(embedding) != domain.EmbeddingDim {
		return domain.ErrInvalidEmbedding
	}
	return nil
}
