//go:build dlib

package detector

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kagami/go-face"
)

// Dlib runs detection in-process with dlib's ResNet model via go-face.
// It produces 128-dimensional descriptors.
type Dlib struct {
	rec *face.Recognizer
	mu  sync.Mutex
}

// NewDlib loads shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and mmod_human_face_detector.dat
// from modelsDir.
func NewDlib(modelsDir string) (*Dlib, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", modelsDir, err)
	}
	return &Dlib{rec: rec}, nil
}

// Detect finds faces in the image. Non-JPEG input is re-encoded first since
// dlib only decodes JPEG.
func (d *Dlib) Detect(ctx context.Context, imageData []byte) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if DetectMIMEType(imageData) != "image/jpeg" {
		img, err := DecodeImage(imageData)
		if err != nil {
			return nil, err
		}
		if imageData, err = EncodeJPEG(img); err != nil {
			return nil, err
		}
	}

	// The recognizer is not safe for concurrent use.
	d.mu.Lock()
	found, err := d.rec.Recognize(imageData)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	if len(found) == 0 {
		return nil, nil
	}
	faces := make([]Face, len(found))
	for i, f := range found {
		desc := [128]float32(f.Descriptor)
		emb := make([]float32, len(desc))
		copy(emb, desc[:])
		faces[i] = Face{
			Index:     i,
			BBox:      []float64{float64(f.Rectangle.Min.X), float64(f.Rectangle.Min.Y), float64(f.Rectangle.Max.X), float64(f.Rectangle.Max.Y)},
			Embedding: emb,
			DetScore:  1.0, // go-face doesn't report confidence
		}
	}
	return faces, nil
}

// Close releases the recognizer.
func (d *Dlib) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
	return nil
}
