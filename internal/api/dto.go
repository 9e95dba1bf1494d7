package api

import (
	"time"

	"github.com/hay-kot/courier/internal/core/messaging"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginData struct {
	SessionID string               `json:"session_id,omitempty"`
	Username  string               `json:"username"`
	Challenge *messaging.Challenge `json:"challenge,omitempty"`
}

type SendMessagesRequest struct {
	Usernames []string `json:"usernames"`
	Message   string   `json:"message"`
	// DelayRange is [min, max] in seconds.
	DelayRange []int `json:"delay_range"`
}

type SendMessagesData struct {
	ReportID   string                 `json:"report_id"`
	Total      int                    `json:"total"`
	Successful int                    `json:"successful"`
	Failed     int                    `json:"failed"`
	Results    []messaging.ItemResult `json:"results"`
}

type UploadUsernamesRequest struct {
	Usernames string `json:"usernames"`
}

type UploadUsernamesData struct {
	Count     int      `json:"count"`
	Usernames []string `json:"usernames"`
	Invalid   []string `json:"invalid,omitempty"`
}

type StatusData struct {
	LoggedIn     bool       `json:"is_logged_in"`
	Username     *string    `json:"username"`
	LastActivity *time.Time `json:"last_activity"`
}

type SessionData struct {
	SessionID    string    `json:"session_id"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type SessionsData struct {
	ActiveSessions int           `json:"active_sessions"`
	Sessions       []SessionData `json:"sessions"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type HealthData struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
