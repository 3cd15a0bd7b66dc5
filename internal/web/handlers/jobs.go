package handlers

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/attendx/internal/constants"
	"github.com/kozaktomas/attendx/internal/session"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrJobActive is returned when a recognition job is already running.
var ErrJobActive = errors.New("a recognition job is already running")

// RecognizeJob is one uploaded image being processed in the background.
type RecognizeJob struct {
	EventBroadcaster

	ID          string
	Filename    string
	Status      JobStatus
	Progress    int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Result      *RecognizeResult

	image []byte
}

// JobView is the JSON representation of a RecognizeJob.
type JobView struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	Status      JobStatus        `json:"status"`
	Progress    int              `json:"progress"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Result      *RecognizeResult `json:"result,omitempty"`
}

// RecognizeResult is the outcome of a completed job.
type RecognizeResult struct {
	Faces     []session.FaceResult `json:"faces"`
	Matched   int                  `json:"matched"`
	Messages  []string             `json:"messages"`
	SheetPath string               `json:"sheet_path"`
	HasImage  bool                 `json:"has_image"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *RecognizeJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Image returns the annotated PNG, or nil before completion.
func (j *RecognizeJob) Image() []byte {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.image
}

// View copies the job state under the lock.
func (j *RecognizeJob) View() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobView{
		ID:          j.ID,
		Filename:    j.Filename,
		Status:      j.Status,
		Progress:    j.Progress,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}

// Cancel cancels the job.
func (j *RecognizeJob) Cancel() {
	now := time.Now()
	j.mu.Lock()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager keeps recognition jobs and allows a single active one.
type JobManager struct {
	jobs    map[string]*RecognizeJob
	order   []string // creation order, oldest first
	active  string
	history int
	mu      sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:    make(map[string]*RecognizeJob),
		history: constants.MaxJobHistory,
	}
}

// CreateJob registers a new pending job, or returns ErrJobActive while
// another job has not finished.
func (m *JobManager) CreateJob(id, filename string) (*RecognizeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != "" {
		return nil, ErrJobActive
	}

	job := &RecognizeJob{
		ID:        id,
		Filename:  filename,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
	m.evictLocked()
	m.jobs[id] = job
	m.order = append(m.order, id)
	m.active = id
	return job, nil
}

// evictLocked drops the oldest finished jobs so that at most history of
// them remain. The caller holds m.mu.
func (m *JobManager) evictLocked() {
	excess := len(m.order) - m.history
	if excess <= 0 {
		return
	}
	kept := m.order[:0]
	for _, id := range m.order {
		job := m.jobs[id]
		if excess > 0 && id != m.active && (job == nil || isJobTerminal(job.GetStatus())) {
			delete(m.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	if m.active == id {
		m.active = ""
	}
}

// Release marks the job as no longer active so a new upload is accepted.
func (m *JobManager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == id {
		m.active = ""
	}
}

// Active returns the running job, if any.
func (m *JobManager) Active() *RecognizeJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[m.active]
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *RecognizeJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}
