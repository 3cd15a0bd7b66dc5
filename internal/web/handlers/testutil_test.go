package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/attendx/internal/attendance"
	"github.com/kozaktomas/attendx/internal/config"
	"github.com/kozaktomas/attendx/internal/session"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Detector.Backend = "http"
	cfg.Embedding.Model = "buffalo_l"
	return cfg
}

// fakeRecognizer returns a canned report. When block is set, Process waits
// for it to be closed.
type fakeRecognizer struct {
	mu      sync.Mutex
	report  *session.Report
	err     error
	panicV  any
	block   chan struct{}
	calls   int
	entries []attendance.Entry
}

func (f *fakeRecognizer) Process(ctx context.Context, _ []byte) (*session.Report, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.report, f.err
}

func (f *fakeRecognizer) Entries() []attendance.Entry { return f.entries }
func (f *fakeRecognizer) Subject() string             { return "Math" }
func (f *fakeRecognizer) Threshold() float64          { return 0.5 }
func (f *fakeRecognizer) Cooldown() time.Duration     { return time.Hour }
func (f *fakeRecognizer) SheetPath() string           { return "attendance sheets/attendance_2025-03-14.xlsx" }
func (f *fakeRecognizer) People() int                 { return 2 }

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// testPNG returns a small encoded image.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.Set(x, y, color.RGBA{200, 100, 50, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// uploadRequest builds a multipart POST with the given bytes in field "file".
func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "class.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// waitForStatus polls the job until it reaches a terminal state.
func waitForStatus(t *testing.T, job *RecognizeJob) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := job.GetStatus(); isJobTerminal(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish, status %s", job.ID, job.GetStatus())
	return ""
}

// waitForRelease waits until the manager accepts new jobs.
func waitForRelease(t *testing.T, jm *JobManager) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if jm.Active() == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job manager still has an active job")
}
