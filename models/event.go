package models

import (
	"time"
)

// RawEvent is a single tracked browser event as stored in ClickHouse. Rows are
// never updated once written.
type RawEvent struct {
	ID           string    `json:"id" ch:"id"`
	Domain       string    `json:"domain" ch:"domain"`
	Pathname     string    `json:"pathname" ch:"pathname"`
	Referrer     *string   `json:"referrer" ch:"referrer"`
	UserAgent    string    `json:"user_agent" ch:"user_agent"`
	ScreenWidth  int32     `json:"screen_width" ch:"screen_width"`
	ScreenHeight int32     `json:"screen_height" ch:"screen_height"`
	SessionID    string    `json:"session_id" ch:"session_id"`
	EventType    string    `json:"event_type" ch:"event_type"`
	Element      string    `json:"element" ch:"element"`
	TimeSpent    float64   `json:"time_spent" ch:"time_spent"`
	IPAddress    string    `json:"-" ch:"ip_address"`
	Timestamp    time.Time `json:"timestamp" ch:"timestamp"`
	CreatedAt    time.Time `json:"created_at" ch:"created_at"`
	UserID       int64     `json:"user_id" ch:"user_id"`
	DomainID     int64     `json:"domain_id" ch:"domain_id"`
}

// TrackEventRequest is the payload the tracker script posts for each event.
type TrackEventRequest struct {
	Domain       string     `json:"domain" binding:"required"`
	Pathname     string     `json:"pathname" binding:"required"`
	Referrer     *string    `json:"referrer"`
	UserAgent    string     `json:"user_agent" binding:"required"`
	ScreenWidth  int32      `json:"screen_width" binding:"gte=0"`
	ScreenHeight int32      `json:"screen_height" binding:"gte=0"`
	SessionID    string     `json:"session_id" binding:"required"`
	EventType    string     `json:"event_type" binding:"required"`
	Element      string     `json:"element"`
	TimeSpent    float64    `json:"time_spent" binding:"gte=0"`
	Timestamp    *time.Time `json:"timestamp"`
}

// ToRawEvent fills in the fields that the server, not the browser, owns.
func (r TrackEventRequest) ToRawEvent(id, ip string, userID, domainID int64, now time.Time) RawEvent {
	ts := now
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		ts = r.Timestamp.UTC()
	}

	return RawEvent{
		ID:           id,
		Domain:       r.Domain,
		Pathname:     r.Pathname,
		Referrer:     r.Referrer,
		UserAgent:    r.UserAgent,
		ScreenWidth:  r.ScreenWidth,
		ScreenHeight: r.ScreenHeight,
		SessionID:    r.SessionID,
		EventType:    r.EventType,
		Element:      r.Element,
		TimeSpent:    r.TimeSpent,
		IPAddress:    ip,
		Timestamp:    ts,
		CreatedAt:    now,
		UserID:       userID,
		DomainID:     domainID,
	}
}
