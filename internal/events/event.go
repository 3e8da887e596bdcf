// Package events defines lifecycle payloads published to the message broker
// and the RabbitMQ publisher that sends them.
package events

// LifecycleEvent is published when a lesson session terminates. It carries
// enough data for downstream consumers (notifications, reconciliation,
// analytics) without reading the primary database.
type LifecycleEvent struct {
	SessionID      string `json:"session_id"`
	BookingID      int64  `json:"booking_id"`
	Role           string `json:"role"`
	Reason         string `json:"reason"`
	BookingStatus  string `json:"booking_status,omitempty"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Refunded       bool   `json:"refunded"`
	StatusSynced   bool   `json:"status_synced"`
	OccurredAt     string `json:"occurred_at"`
}
