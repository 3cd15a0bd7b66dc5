package detector

import (
	"fmt"

	"github.com/kozaktomas/attendx/internal/config"
)

// New creates the detector selected by cfg.Detector.Backend, wrapped for
// upscaling when cfg.Detector.Scale differs from 1.
func New(cfg *config.Config) (Detector, error) {
	var d Detector
	switch cfg.Detector.Backend {
	case "", "http":
		d = NewClient(cfg.Embedding.URL, ModelConfig{
			Name:      cfg.Embedding.Model,
			DetSize:   cfg.Detector.DetSize,
			DetThresh: cfg.Detector.DetThreshold,
		})
	case "dlib":
		dl, err := NewDlib(cfg.Detector.ModelsDir)
		if err != nil {
			return nil, err
		}
		d = dl
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Detector.Backend)
	}
	return NewScaled(d, cfg.Detector.Scale), nil
}
