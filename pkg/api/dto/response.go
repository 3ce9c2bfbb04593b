package dto

import "github.com/gm-agent-org/gm-settings/pkg/notify"

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DeleteResponse is the response for delete operations.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// IDResponse carries the ID of a created entry.
type IDResponse struct {
	ID string `json:"id"`
}

// DiffResponse is the pending change preview.
type DiffResponse struct {
	Changed bool   `json:"changed"`
	Diff    string `json:"diff"`
}

// SaveResponse reports the outcome of a save.
type SaveResponse struct {
	Persisted bool     `json:"persisted"`
	Committed []string `json:"committed,omitempty"`
	Failed    []string `json:"failed,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ModelsResponse lists discovered models.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// ConnectionResponse is the outcome of a connection probe.
type ConnectionResponse struct {
	Connected bool `json:"connected"`
}

// NotificationListResponse lists queued notifications.
type NotificationListResponse struct {
	Notifications []notify.Notification `json:"notifications"`
}
