// Package liveness scores whether a face crop comes from a live subject or
// a photo/screen replay, using single-frame heuristics only.
package liveness

import (
	_ "embed"
	"image"

	"gopkg.in/yaml.v3"

	"github.com/saturnino-fabrica-de-software/presenca/internal/imaging"
)

//go:embed weights.yaml
var weightsYAML []byte

// minCropSize is the smallest usable face crop. Anything smaller carries too
// little signal to score and is treated as indeterminate.
const minCropSize = 16

// fftSize is the side length crops are scaled to before the frequency
// analysis. Power of two, required by the radix-2 transform.
const fftSize = 64

// Weights distributes the per-signal contributions to the combined score.
type Weights struct {
	Texture    float64 `yaml:"texture"`
	Frequency  float64 `yaml:"frequency"`
	Color      float64 `yaml:"color"`
	Sharpness  float64 `yaml:"sharpness"`
	Reflection float64 `yaml:"reflection"`
}

type Config struct {
	Enabled   bool
	Threshold float64
	Weights   Weights
}

// DefaultConfig returns the embedded signal weights with the standard 0.75
// threshold.
func DefaultConfig() Config {
	var w Weights
	if err := yaml.Unmarshal(weightsYAML, &w); err != nil {
		// The weights file is embedded, so this cannot happen outside a
		// broken build.
		panic("liveness: unmarshal embedded weights.yaml: " + err.Error())
	}
	return Config{
		Enabled:   true,
		Threshold: 0.75,
		Weights:   w,
	}
}

// Verdict is the scoring outcome for one face crop.
//
// Indeterminate marks the fail-open branch: the scorer could not analyze the
// crop and admits the face with a neutral score instead of blocking it.
// Blocking a legitimate user is judged worse than occasionally admitting a
// spoof, so this is a deliberate policy, kept visible as a typed field.
type Verdict struct {
	Score         float64
	Live          bool
	Indeterminate bool
	Breakdown     map[string]float64
}

// Scorer is a pure function of (crop, config): identical inputs always
// produce identical verdicts.
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score analyzes a single face crop. With liveness disabled it always
// returns live/1.0; on unusable input it fails open with Indeterminate set.
func (s *Scorer) Score(crop image.Image) Verdict {
	if !s.cfg.Enabled {
		return Verdict{Score: 1.0, Live: true}
	}

	if crop == nil {
		return indeterminate()
	}
	bounds := crop.Bounds()
	if bounds.Dx() < minCropSize || bounds.Dy() < minCropSize {
		return indeterminate()
	}

	gray := imaging.Grayscale(crop)

	texture := textureScore(gray)
	frequency := frequencyScore(imaging.ResizeGray(gray, fftSize, fftSize))
	color := colorEntropyScore(crop)
	sharpness := sharpnessScore(gray)
	reflection := reflectionScore(gray)

	w := s.cfg.Weights
	score := texture*w.Texture +
		frequency*w.Frequency +
		color*w.Color +
		sharpness*w.Sharpness +
		reflection*w.Reflection

	return Verdict{
		Score: score,
		Live:  score > s.cfg.Threshold,
		Breakdown: map[string]float64{
			"texture":    texture,
			"frequency":  frequency,
			"color":      color,
			"sharpness":  sharpness,
			"reflection": reflection,
		},
	}
}

func indeterminate() Verdict {
	return Verdict{Score: 0.5, Live: true, Indeterminate: true}
}
