package models

import "time"

// Session is a reconstructed visit: every event one visitor produced on one
// domain, reduced to its bounds and a few derived attributes.
type Session struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	UserID     int64     `json:"user_id"`
	DomainID   int64     `json:"domain_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Duration   float64   `json:"duration"`
	EventCount int       `json:"event_count"`
	Device     string    `json:"device"`
	OS         string    `json:"os"`
	Browser    string    `json:"browser"`
	Country    *string   `json:"country"`
	EntryPath  string    `json:"entry_path"`
	ExitPath   string    `json:"exit_path"`
}

// SessionRangeQuery is bound from the analytics query string.
type SessionRangeQuery struct {
	Domain string    `form:"domain" binding:"required"`
	Start  time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End    time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}
