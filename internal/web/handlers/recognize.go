package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/attendx/internal/constants"
	"github.com/kozaktomas/attendx/internal/detector"
	"github.com/kozaktomas/attendx/internal/session"
)

const jobTimeout = 5 * time.Minute

// RecognizeHandler accepts uploaded images and runs them through the
// attendance session in the background.
type RecognizeHandler struct {
	recognizer Recognizer
	jobManager *JobManager
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(rec Recognizer, jm *JobManager) *RecognizeHandler {
	return &RecognizeHandler{
		recognizer: rec,
		jobManager: jm,
	}
}

// Start handles POST /recognize with a multipart "file" field.
func (h *RecognizeHandler) Start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if !detector.IsImage(data) {
		respondError(w, http.StatusBadRequest, "file is not a supported image")
		return
	}

	job, err := h.jobManager.CreateJob(uuid.New().String(), header.Filename)
	if errors.Is(err, ErrJobActive) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The request context ends with this handler, the job outlives it.
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	job.setCancel(cancel)
	go h.runJob(ctx, cancel, job, data)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(JobStatusPending),
	})
}

// Status returns the job state and result.
func (h *RecognizeHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.View())
}

// Events streams job events via SSE.
func (h *RecognizeHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*RecognizeJob).View()
		},
	)
}

// Image returns the annotated image of a completed job.
func (h *RecognizeHandler) Image(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	img := job.Image()
	if img == nil {
		respondError(w, http.StatusNotFound, "no annotated image for this job")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="annotated-%s.png"`, job.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

// Cancel cancels a running job. A finished job is deleted together with
// its annotated image.
func (h *RecognizeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	if isJobTerminal(job.GetStatus()) {
		h.jobManager.DeleteJob(job.ID)
		respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
		return
	}
	job.Cancel()
	h.jobManager.Release(job.ID)
	respondJSON(w, http.StatusOK, map[string]string{"status": string(JobStatusCancelled)})
}

func (h *RecognizeHandler) lookup(w http.ResponseWriter, r *http.Request) *RecognizeJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

func (h *RecognizeHandler) runJob(ctx context.Context, cancel context.CancelFunc, job *RecognizeJob, data []byte) {
	defer cancel()
	defer h.jobManager.Release(job.ID)
	defer func() {
		if p := recover(); p != nil {
			log.Printf("Recognize job %s panicked: %v", job.ID, p)
			h.failJob(job, fmt.Sprintf("internal error: %v", p))
		}
	}()

	job.mu.Lock()
	if job.Status != JobStatusPending {
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "progress", Message: "Detecting faces", Data: map[string]any{"phase": "detecting"}})

	report, err := h.recognizer.Process(ctx, data)
	if err != nil {
		if job.GetStatus() == JobStatusCancelled {
			return
		}
		if errors.Is(err, session.ErrNoFaces) {
			h.failJob(job, "No faces detected in the image.")
			return
		}
		log.Printf("Recognize job %s failed: %v", job.ID, err)
		h.failJob(job, err.Error())
		return
	}

	job.mu.Lock()
	job.Progress = 50
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "progress", Message: "Annotating image", Data: map[string]any{"phase": "annotating", "faces": len(report.Faces)}})

	var img []byte
	if report.Image != nil {
		img, err = detector.EncodePNG(detector.FitWidth(report.Image, constants.MaxDisplayWidth))
		if err != nil {
			log.Printf("Recognize job %s: %v", job.ID, err)
		}
	}

	result := &RecognizeResult{
		Faces:     report.Faces,
		Matched:   report.Matched(),
		Messages:  report.Messages(),
		SheetPath: report.SheetPath,
		HasImage:  img != nil,
	}
	for _, m := range result.Messages {
		log.Printf("%s", sanitizeForLog(m))
	}

	now := time.Now()
	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusCompleted
	job.CompletedAt = &now
	job.Progress = 100
	job.Result = result
	job.image = img
	job.mu.Unlock()

	job.SendEvent(JobEvent{Type: "completed", Data: result})
}

func (h *RecognizeHandler) failJob(job *RecognizeJob, message string) {
	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = message
	job.CompletedAt = &now
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "failed", Message: message})
}
