package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypeSession  = "session"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports one render poll
type WSProgressMessage struct {
	Type        string       `json:"type"`
	SessionID   string       `json:"sessionId"`
	JobID       string       `json:"jobId"`
	Status      RenderStatus `json:"status"`
	Attempt     int          `json:"attempt"`
	MaxAttempts int          `json:"maxAttempts"`
}

// WSCompleteMessage reports a finished render
type WSCompleteMessage struct {
	Type      string     `json:"type"`
	SessionID string     `json:"sessionId"`
	Render    *RenderJob `json:"render"`
}

// WSSessionMessage announces a saved session change
type WSSessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Phase     Phase  `json:"phase"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Error     WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
