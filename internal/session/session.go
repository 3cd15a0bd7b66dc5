// Package session ties detection, matching, attendance and the spreadsheet
// together for one subject.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/attendx/internal/annotate"
	"github.com/kozaktomas/attendx/internal/attendance"
	"github.com/kozaktomas/attendx/internal/constants"
	"github.com/kozaktomas/attendx/internal/detector"
	"github.com/kozaktomas/attendx/internal/embeddings"
	"github.com/kozaktomas/attendx/internal/facematch"
	"github.com/kozaktomas/attendx/internal/sheet"
)

// ErrNoFaces is returned when the detector finds no face in an image.
var ErrNoFaces = errors.New("no faces detected in the image")

// MarkRecorder receives every Marked outcome, e.g. to keep a database log.
type MarkRecorder interface {
	RecordMark(ctx context.Context, subject, name string, at time.Time, similarity float64) error
}

// Options configures a Session.
type Options struct {
	Subject   string
	Threshold float64
	// Cooldown is passed to attendance.NewRegister; zero re-marks every sighting.
	Cooldown time.Duration
	// Now defaults to time.Now.
	Now      func() time.Time
	Recorder MarkRecorder
}

// Session processes images for a single subject. It is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	subject   string
	threshold float64
	now       func() time.Time
	store     *embeddings.Store
	det       detector.Detector
	book      *sheet.Book
	register  *attendance.Register
	recorder  MarkRecorder
}

// New creates a session. The subject is used as given; callers normalise it.
func New(store *embeddings.Store, det detector.Detector, book *sheet.Book, opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		subject:   opts.Subject,
		threshold: opts.Threshold,
		now:       now,
		store:     store,
		det:       det,
		book:      book,
		register:  attendance.NewRegister(opts.Cooldown),
		recorder:  opts.Recorder,
	}
}

// Setup is the outcome of Prepare.
type Setup struct {
	Sheet     sheet.EnsureResult
	Preloaded int
	// PreloadErr is set when existing attendance could not be read; the
	// session then starts with an empty record.
	PreloadErr error
}

// Prepare ensures the subject sheet exists and, when preload is set, seeds
// the attendance record from it.
func (s *Session) Prepare(preload bool) (*Setup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setup := &Setup{}
	if preload {
		entries, err := s.book.Load(s.subject)
		if err != nil {
			setup.PreloadErr = err
		} else {
			s.register.Seed(entries)
			setup.Preloaded = len(entries)
		}
	}

	res, err := s.book.EnsureSheet(s.subject)
	if err != nil {
		return setup, fmt.Errorf("preparing sheet %q: %w", s.subject, err)
	}
	setup.Sheet = res
	return setup, nil
}

// FaceResult is the outcome for one detected face.
type FaceResult struct {
	BBox       []float64          `json:"bbox"`
	BBoxRel    []float64          `json:"bbox_rel"`
	Name       string             `json:"name"`
	Similarity float64            `json:"similarity"`
	Matched    bool               `json:"matched"`
	Outcome    attendance.Outcome `json:"-"`
	Status     string             `json:"status"`
	At         time.Time          `json:"at,omitzero"`
}

// Report describes one processed image.
type Report struct {
	Faces     []FaceResult `json:"faces"`
	SheetPath string       `json:"sheet_path"`
	Image     *image.RGBA  `json:"-"`
}

// Matched returns the number of faces matched to a known person.
func (r *Report) Matched() int {
	n := 0
	for _, f := range r.Faces {
		if f.Matched {
			n++
		}
	}
	return n
}

// Messages returns one console line per matched face.
func (r *Report) Messages() []string {
	var lines []string
	for _, f := range r.Faces {
		switch f.Outcome {
		case attendance.Marked:
			lines = append(lines, fmt.Sprintf("[✓] %s marked at %s", f.Name, f.At.Format(time.TimeOnly)))
		case attendance.AlreadyMarked:
			lines = append(lines, fmt.Sprintf("[!] %s already marked at %s", f.Name, f.At.Format(time.TimeOnly)))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "No matches found in the image.")
	}
	return lines
}

// Process detects faces in imageData, marks attendance for every match and
// saves the subject sheet. The returned report carries the annotated image.
// When the sheet cannot be saved the report is still returned with the error.
func (s *Session) Process(ctx context.Context, imageData []byte) (*Report, error) {
	img, err := detector.DecodeImage(imageData)
	if err != nil {
		return nil, err
	}

	faces, err := s.det.Detect(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(faces) == 0 {
		return nil, ErrNoFaces
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// a cancelled request must not mark anybody
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	report := &Report{SheetPath: s.book.Path()}
	labels := make([]annotate.Label, 0, len(faces))

	for _, face := range faces {
		// stored vectors are unit-norm, so the query must be too
		res := facematch.Match(facematch.Normalize(face.Embedding), s.store.People, s.threshold)
		bbox := facematch.ClampBBox(face.BBox, bounds.Dx(), bounds.Dy())
		fr := FaceResult{
			BBox:       bbox,
			BBoxRel:    facematch.ConvertPixelBBoxToRelative(bbox, bounds.Dx(), bounds.Dy()),
			Name:       constants.UnknownLabel,
			Similarity: res.Similarity,
			Matched:    res.Matched,
			Status:     constants.UnknownLabel,
		}

		if res.Matched {
			fr.Name = res.Name
			fr.Outcome, fr.At = s.register.Mark(res.Name, s.now())
			fr.Status = fr.Outcome.String()
			if fr.Outcome == attendance.Marked && s.recorder != nil {
				if err := s.recorder.RecordMark(ctx, s.subject, res.Name, fr.At, res.Similarity); err != nil {
					log.Printf("Warning: failed to record mark for %s: %v", res.Name, err)
				}
			}
		}

		report.Faces = append(report.Faces, fr)
		labels = append(labels, annotate.Label{BBox: fr.BBox, Text: fr.Name})
	}

	report.Image = annotate.Draw(img, labels)

	if err := s.book.Save(s.subject, s.register.Entries()); err != nil {
		return report, fmt.Errorf("saving attendance: %w", err)
	}
	return report, nil
}

// Entries returns the current attendance in first-mark order.
func (s *Session) Entries() []attendance.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register.Entries()
}

// Save writes the current attendance to the subject sheet.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Save(s.subject, s.register.Entries())
}

// Subject returns the subject name.
func (s *Session) Subject() string { return s.subject }

// Threshold returns the similarity threshold.
func (s *Session) Threshold() float64 { return s.threshold }

// Cooldown returns the re-mark cooldown.
func (s *Session) Cooldown() time.Duration { return s.register.Cooldown() }

// SheetPath returns the path of today's workbook.
func (s *Session) SheetPath() string { return s.book.Path() }

// People returns the number of registered people.
func (s *Session) People() int { return s.store.Len() }
