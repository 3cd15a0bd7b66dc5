// Package detector wraps the face detection + embedding collaborator.
//
// The default backend is an InsightFace-compatible HTTP service; a dlib
// backend is available when built with the "dlib" tag.
package detector

import "context"

// Face represents a single detected face.
type Face struct {
	Index     int       `json:"face_index"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

// Detector turns encoded image bytes into detected faces.
// A nil slice with nil error means the image contains no faces.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Face, error)
	Close() error
}

// ModelConfig is sent to the embedding service on every request, replacing
// module-level model initialisation.
type ModelConfig struct {
	Name      string  // model pack (buffalo_l, antelopev2)
	DetSize   int     // detector input size, e.g. 640 or 1280
	DetThresh float64 // detection score threshold
}
