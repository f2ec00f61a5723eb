// Package notify pushes timer state changes to the owning user's live
// connections. Delivery is best effort: no acknowledgement, retry or
// persistence of missed events.
package notify

import "context"

// Timer events.
const (
	EventTimerStarted = "timer:started"
	EventTimerStopped = "timer:stopped"
	EventTimerPaused  = "timer:paused"
	EventTimerResumed = "timer:resumed"
)

// Notifier delivers an event to every connection registered for userID.
type Notifier interface {
	BroadcastToUser(ctx context.Context, userID, event string, payload interface{})
}

// Nop discards every event.
type Nop struct{}

func (Nop) BroadcastToUser(context.Context, string, string, interface{}) {}

// Message is the frame written to clients.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
