package ws

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	defaultBufferMaxLen = 200
	defaultBufferMaxAge = 1 * time.Hour
	bufferSweepPeriod   = 10 * time.Minute
)

// EventBuffer keeps recent events per merchant so a reconnecting checkout
// screen can catch up on model changes it missed.
type EventBuffer struct {
	mu     sync.RWMutex
	events map[string][]Event
	maxAge time.Duration
	maxLen int
}

// NewEventBuffer creates an EventBuffer holding at most maxLen events per
// merchant, none older than maxAge.
func NewEventBuffer(maxLen int, maxAge time.Duration) *EventBuffer {
	return &EventBuffer{
		events: make(map[string][]Event),
		maxAge: maxAge,
		maxLen: maxLen,
	}
}

// Sweep drops merchants whose newest event has expired, every
// bufferSweepPeriod until ctx is cancelled.
func (eb *EventBuffer) Sweep(ctx context.Context) {
	ticker := time.NewTicker(bufferSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			eb.evictStale(now)
		}
	}
}

func (eb *EventBuffer) evictStale(now time.Time) {
	cutoff := now.Add(-eb.maxAge)

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for merchant, buf := range eb.events {
		if len(buf) == 0 || buf[len(buf)-1].Time.Before(cutoff) {
			delete(eb.events, merchant)
		}
	}
}

// Append stores evt, trimming expired and excess events.
func (eb *EventBuffer) Append(evt Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	buf := eb.events[evt.MerchantID]

	cutoff := evt.Time.Add(-eb.maxAge)
	start := sort.Search(len(buf), func(i int) bool { return !buf[i].Time.Before(cutoff) })

	buf = append(buf[start:], evt)
	if over := len(buf) - eb.maxLen; over > 0 {
		buf = buf[over:]
	}

	eb.events[evt.MerchantID] = buf
}

// Since returns a copy of the merchant's events with ID > lastEventID.
func (eb *EventBuffer) Since(merchantID string, lastEventID uint64) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	buf := eb.events[merchantID]
	i := sort.Search(len(buf), func(i int) bool { return buf[i].ID > lastEventID })
	if i == len(buf) {
		return nil
	}

	out := make([]Event, len(buf)-i)
	copy(out, buf[i:])

	return out
}

// OldestID returns the oldest buffered event ID of a merchant, or 0.
func (eb *EventBuffer) OldestID(merchantID string) uint64 {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if buf := eb.events[merchantID]; len(buf) > 0 {
		return buf[0].ID
	}
	return 0
}
