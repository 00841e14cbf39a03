// Package api holds the JSON payloads shared by the HTTP handlers.
package api

// LoginResponse is returned by signup and login.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
	UserID  string `json:"userId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ToggleResponse reports list membership after a favorite or read-later toggle.
type ToggleResponse struct {
	StoryID string `json:"storyId"`
	Member  bool   `json:"member"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type URLResponse struct {
	URL string `json:"url"`
}

// PurgeResponse lists the stories removed by a purge run.
type PurgeResponse struct {
	Purged []string `json:"purged"`
	Error  string   `json:"error,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}
