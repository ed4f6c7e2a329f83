package model

// WebSocket message types
const (
	WSMessageTypeSubmitted = "submitted"
	WSMessageTypeComplete  = "complete"
	WSMessageTypeError     = "error"
	WSMessageTypePing      = "ping"
	WSMessageTypePong      = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage reports a lifecycle change of a job
type WSStatusMessage struct {
	Type   string    `json:"type"`
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
	Title  string    `json:"title,omitempty"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobEvent is a lifecycle notification fanned out to subscribers.
type JobEvent struct {
	Type    string    `json:"type"`
	JobID   string    `json:"jobId"`
	OwnerID string    `json:"ownerId"`
	Title   string    `json:"title,omitempty"`
	Status  JobStatus `json:"status"`
	Reason  string    `json:"reason,omitempty"`
}
