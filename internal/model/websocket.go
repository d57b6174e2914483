package model

// Inbound WebSocket message types
const (
	WSMessageTypeCreateWallpaper = "create_wallpaper"
	WSMessageTypeConnected       = "connected"
	WSMessageTypePing            = "ping"
	WSMessageTypePong            = "pong"
)

// Outbound WebSocket event types
const (
	WSEventTypeConnected  = "connected_response"
	WSEventTypeProgress   = "progress_report"
	WSEventTypeThumbnails = "thumbnails_ready"
	WSEventTypeAllDone    = "all_done"
	WSEventTypeFailed     = "job_failed"
)

// WSMessage represents a generic WebSocket message envelope
type WSMessage struct {
	Type string `json:"type"`
}

// ConnectedEvent is sent once after the websocket upgrade so the client
// learns its session id.
type ConnectedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ProgressEvent carries a full session snapshot on every progress update
type ProgressEvent struct {
	Type    string      `json:"type"`
	Session *JobSession `json:"session"`
}

// ThumbnailsEvent announces that one variant's thumbnails exist
type ThumbnailsEvent struct {
	Type                    string      `json:"type"`
	ColorScheme             string      `json:"colorScheme"`
	WaveformThumbnailURL    string      `json:"waveformThumbnailUrl"`
	SpectrogramThumbnailURL string      `json:"spectrogramThumbnailUrl"`
	Session                 *JobSession `json:"session"`
}

// AllDoneEvent announces whole-job completion, published exactly once
type AllDoneEvent struct {
	Type           string      `json:"type"`
	Session        *JobSession `json:"session"`
	ImagesProduced int64       `json:"imagesProduced"`
}

// FailedEvent announces job failure, published exactly once per failure
type FailedEvent struct {
	Type    string      `json:"type"`
	Error   WSError     `json:"error"`
	Session *JobSession `json:"session,omitempty"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
