package web

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/attendx/internal/web/handlers"
	"github.com/kozaktomas/attendx/internal/web/static"
)

func (s *Server) setupRoutes() {
	recognizeHandler := handlers.NewRecognizeHandler(s.recognizer, s.jobManager)
	attendanceHandler := handlers.NewAttendanceHandler(s.recognizer)
	configHandler := handlers.NewConfigHandler(s.config, s.recognizer)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Short requests; the SSE stream is registered outside this group.
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(time.Minute))

			r.Get("/config", configHandler.Get)
			r.Get("/attendance", attendanceHandler.List)

			r.Post("/recognize", recognizeHandler.Start)
			r.Get("/recognize/{jobId}", recognizeHandler.Status)
			r.Get("/recognize/{jobId}/image", recognizeHandler.Image)
			r.Delete("/recognize/{jobId}", recognizeHandler.Cancel)
		})

		r.Get("/recognize/{jobId}/events", recognizeHandler.Events)
	})

	s.router.Get("/", s.serveIndex)
	s.router.Get("/index.html", s.serveIndex)
}

// serveIndex serves the embedded upload page.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if static.HasDist() {
		f, err := static.GetFileSystem().Open("index.html")
		if err == nil {
			defer f.Close()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			io.Copy(w, f)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>AttendX</title></head>
<body>
    <h1>AttendX</h1>
    <p>The upload page is missing from this build.</p>
    <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
</body>
</html>`))
}
