// Package ws pushes model lifecycle events to connected checkout screens so
// they can refresh their suggestions after a retrain.
package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/metrics"
)

const (
	broadcastBuffer = 256
	registerBuffer  = 64

	maxClients            = 1000
	maxClientsPerMerchant = 50

	// maxBroadcastPayload bounds a single event frame.
	maxBroadcastPayload = 4096

	drainTimeout = 3 * time.Second
)

type merchantMsg struct {
	merchantID string
	msg        []byte
}

// Hub tracks connected clients per merchant. Client sets are only touched by
// the Run goroutine.
type Hub struct {
	merchants  map[string]map[*Client]struct{}
	total      int
	register   chan *Client
	unregister chan *Client
	broadcast  chan merchantMsg
	shutdown   chan struct{}
	done       chan struct{}
	count      atomic.Int64
	log        *logrus.Logger
	seq        *EventSequence
	buffer     *EventBuffer
}

// NewHub creates a Hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		merchants:  make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, registerBuffer),
		unregister: make(chan *Client, registerBuffer),
		broadcast:  make(chan merchantMsg, broadcastBuffer),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
		seq:        NewEventSequence(),
		buffer:     NewEventBuffer(defaultBufferMaxLen, defaultBufferMaxAge),
	}
}

// Run is the hub event loop. It exits, draining clients, when Shutdown is
// called or ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.buffer.Sweep(sweepCtx)

	for {
		select {
		case <-ctx.Done():
			h.drainClients()
			return
		case <-h.shutdown:
			h.drainClients()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case b := <-h.broadcast:
			for c := range h.merchants[b.merchantID] {
				select {
				case c.send <- b.msg:
				default:
					// Slow consumer; it reconnects and replays.
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) add(c *Client) {
	if h.total >= maxClients {
		h.log.Warn("global connection limit reached, dropping client")
		c.closeSend()
		return
	}

	set := h.merchants[c.MerchantID]
	if len(set) >= maxClientsPerMerchant {
		h.log.WithField("merchant_id", c.MerchantID).Warn("per-merchant connection limit reached, dropping client")
		c.closeSend()
		return
	}

	if set == nil {
		set = make(map[*Client]struct{})
		h.merchants[c.MerchantID] = set
	}
	set[c] = struct{}{}
	h.total++
	h.updateCount()

	h.log.WithFields(logrus.Fields{"merchant_id": c.MerchantID, "total": h.total}).Debug("client registered")
}

func (h *Hub) remove(c *Client) {
	set, ok := h.merchants[c.MerchantID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}

	delete(set, c)
	if len(set) == 0 {
		delete(h.merchants, c.MerchantID)
	}
	c.closeSend()
	h.total--
	h.updateCount()
}

func (h *Hub) updateCount() {
	h.count.Store(int64(h.total))
	metrics.WSConnections.Set(float64(h.total))
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("register channel full, dropping client")
		c.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// BroadcastEvent assigns a sequence ID, buffers the event for replay and
// sends it to every client of merchantID. Oversized payloads are dropped.
func (h *Hub) BroadcastEvent(eventType, merchantID string, data json.RawMessage) {
	evt := Event{
		Type:       eventType,
		ID:         h.seq.Next(merchantID),
		MerchantID: merchantID,
		Data:       data,
		Time:       time.Now(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal event")
		return
	}

	if len(msg) > maxBroadcastPayload {
		h.log.WithFields(logrus.Fields{
			"merchant_id":  merchantID,
			"event":        eventType,
			"payload_size": len(msg),
		}).Warn("dropping oversized event")
		return
	}

	h.buffer.Append(evt)

	select {
	case h.broadcast <- merchantMsg{merchantID: merchantID, msg: msg}:
	default:
		h.log.Warn("broadcast channel full, dropping event")
	}
}

// Shutdown sends every client a shutdown frame, waits for their write pumps
// to flush, then closes them. It blocks until the drain completes.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

func (h *Hub) drainClients() {
	if h.total == 0 {
		return
	}

	h.log.WithField("clients", h.total).Info("draining WebSocket clients")

	shutdownMsg := []byte(`{"type":"shutdown","message":"server shutting down"}`)
	h.each(func(c *Client) {
		select {
		case c.send <- shutdownMsg:
		default:
		}
	})

	h.waitFlushed(time.Now().Add(drainTimeout))

	h.each(func(c *Client) { c.closeSend() })
	h.merchants = make(map[string]map[*Client]struct{})
	h.total = 0
	h.updateCount()
}

// waitFlushed polls until every send buffer is empty or the deadline passes.
func (h *Hub) waitFlushed(deadline time.Time) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		pending := false
		h.each(func(c *Client) { pending = pending || len(c.send) > 0 })
		if !pending {
			return
		}
		<-ticker.C
	}

	h.log.Warn("WebSocket drain timeout, closing remaining clients")
}

func (h *Hub) each(fn func(*Client)) {
	for _, set := range h.merchants {
		for c := range set {
			fn(c)
		}
	}
}

// ReplayEvents queues buffered events after lastEventID for the client. It
// returns false when lastEventID is older than the buffer reaches.
func (h *Hub) ReplayEvents(c *Client, lastEventID uint64) bool {
	oldest := h.buffer.OldestID(c.MerchantID)
	if oldest > 0 && lastEventID > 0 && lastEventID+1 < oldest {
		return false
	}

	for _, evt := range h.buffer.Since(c.MerchantID, lastEventID) {
		msg, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		select {
		case c.send <- msg:
		default:
			return true
		}
	}

	return true
}
