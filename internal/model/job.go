package model

import "time"

// RenderJob tracks one external video render
type RenderJob struct {
	ID          string        `json:"id"`
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	Status      RenderStatus  `json:"status"`
	Attempts    int           `json:"attempts"`
	SubmittedAt time.Time     `json:"submittedAt"`
	MaxAttempts int           `json:"maxAttempts"`
	MaxWait     time.Duration `json:"maxWait"`
	ResultURL   string        `json:"resultUrl,omitempty"`
	Error       string        `json:"error,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// Terminal reports whether the job reached a final status.
func (j *RenderJob) Terminal() bool {
	return j != nil && j.Status.Terminal()
}

// Succeeded reports whether the job finished with a deliverable.
func (j *RenderJob) Succeeded() bool {
	return j != nil && j.Status == RenderDone && j.ResultURL != ""
}

// Task types
const (
	TaskTypeTrackRender = "studio:track-render"
)

// TrackRenderPayload is the queued task body for render tracking
type TrackRenderPayload struct {
	SessionID string `json:"sessionId"`
	JobID     string `json:"jobId"`
	Mode      Mode   `json:"mode"`
}
