package model

import "time"

// RenderStartResponse is returned when a render job was submitted
type RenderStartResponse struct {
	SessionID   string       `json:"sessionId"`
	JobID       string       `json:"jobId"`
	Status      RenderStatus `json:"status"`
	MaxAttempts int          `json:"maxAttempts"`
	MaxWaitSec  int          `json:"maxWaitSec"`
	SubmittedAt time.Time    `json:"submittedAt"`
}

// RenderStatusResponse reports the tracked render job of a session
type RenderStatusResponse struct {
	SessionID      string     `json:"sessionId"`
	Render         *RenderJob `json:"render"`
	ManualAssembly bool       `json:"manualAssembly"`
}
