package detector

import (
	"context"
	"fmt"

	"github.com/kozaktomas/attendx/internal/facematch"
)

// Scaled upscales images before handing them to the wrapped detector, which
// helps with small faces, and maps the boxes back to original coordinates.
type Scaled struct {
	Detector
	factor float64
}

// NewScaled wraps d. A factor of 1 returns d itself.
func NewScaled(d Detector, factor float64) Detector {
	if factor <= 0 || factor == 1 {
		return d
	}
	return &Scaled{Detector: d, factor: factor}
}

// Detect scales imageData by the configured factor and detects faces on the result.
func (s *Scaled) Detect(ctx context.Context, imageData []byte) ([]Face, error) {
	img, err := DecodeImage(imageData)
	if err != nil {
		return nil, err
	}
	scaled, err := EncodeJPEG(ScaleImage(img, s.factor))
	if err != nil {
		return nil, fmt.Errorf("scaling image: %w", err)
	}

	faces, err := s.Detector.Detect(ctx, scaled)
	if err != nil {
		return nil, err
	}
	for i := range faces {
		faces[i].BBox = facematch.ScaleBBox(faces[i].BBox, s.factor)
	}
	return faces, nil
}
