package models

import "time"

// CheckInEvent is the audit payload published to Kafka whenever a check-in
// or undo is applied, either live or during queue replay.
type CheckInEvent struct {
	TicketID   string     `json:"ticket_id"`
	TicketCode string     `json:"ticket_code,omitempty"`
	EventID    string     `json:"event_id"`
	Kind       ActionKind `json:"kind"`
	ActorID    string     `json:"actor_id"`
	ActedAt    time.Time  `json:"acted_at"`
	Offline    bool       `json:"offline"`
	Replayed   bool       `json:"replayed"`
}

// SyncCompletedEvent is the audit payload published after a sync pass.
type SyncCompletedEvent struct {
	DeviceID   string    `json:"device_id"`
	Synced     int       `json:"synced"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
