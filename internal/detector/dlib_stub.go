//go:build !dlib

package detector

import (
	"context"
	"errors"
)

// ErrDlibUnavailable is returned when the binary was built without the dlib tag.
var ErrDlibUnavailable = errors.New("dlib backend not compiled in, rebuild with -tags dlib")

// Dlib is a placeholder for builds without dlib support.
type Dlib struct{}

// NewDlib always fails in builds without the dlib tag.
func NewDlib(string) (*Dlib, error) {
	return nil, ErrDlibUnavailable
}

func (d *Dlib) Detect(context.Context, []byte) ([]Face, error) {
	return nil, ErrDlibUnavailable
}

func (d *Dlib) Close() error {
	return nil
}
