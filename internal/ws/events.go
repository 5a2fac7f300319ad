package ws

import (
	"encoding/json"
	"sync"
	"time"
)

// Event is the structured message sent to WebSocket clients.
type Event struct {
	Type       string          `json:"type"`
	ID         uint64          `json:"id"`
	MerchantID string          `json:"-"`
	Data       json.RawMessage `json:"data"`
	Time       time.Time       `json:"time"`
}

// SubscribeMsg is sent by the client on connect to request event replay.
type SubscribeMsg struct {
	Type        string `json:"type"`
	LastEventID uint64 `json:"last_event_id"`
}

// ResetMsg tells the client to refetch state because the requested events
// were evicted from the replay buffer.
type ResetMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// EventSequence hands out monotonic event IDs per merchant.
type EventSequence struct {
	mu   sync.Mutex
	next map[string]uint64
}

// NewEventSequence creates an EventSequence.
func NewEventSequence() *EventSequence {
	return &EventSequence{next: make(map[string]uint64)}
}

// Next returns the next ID for merchantID, starting at 1.
func (es *EventSequence) Next(merchantID string) uint64 {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.next[merchantID]++
	return es.next[merchantID]
}
