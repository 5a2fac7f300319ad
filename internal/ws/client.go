package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/domain"
)

const (
	writeTimeout       = 10 * time.Second
	wsReadLimit        = 4096
	clientSendBuffer   = 64
	maxConnLifetime    = 8 * time.Hour // one trading day
	keyRecheckInterval = 15 * time.Minute
	keyRecheckTimeout  = 10 * time.Second
	pingInterval       = 30 * time.Second
	pingTimeout        = 10 * time.Second
	maxMissedPongs     = 2
)

// Client is one WebSocket connection of a merchant's checkout screen.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	log         *logrus.Logger
	MerchantID  string
	apiKey      string
	resolver    domain.MerchantResolver
	closeOnce   sync.Once
	connectedAt time.Time
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// NewClient creates a Client for merchantID. resolver, when set, is used to
// re-check the API key periodically.
func NewClient(hub *Hub, conn *websocket.Conn, merchantID, apiKey string, resolver domain.MerchantResolver) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, clientSendBuffer),
		log:         hub.log,
		MerchantID:  merchantID,
		apiKey:      apiKey,
		resolver:    resolver,
		connectedAt: time.Now(),
	}
}

// ReadPump reads client frames until the connection closes. The only
// accepted message is a subscribe request for event replay.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.CloseNow() //nolint:errcheck // best-effort close on teardown
	}()

	c.conn.SetReadLimit(wsReadLimit)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.log.WithField("status", status).Debug("client disconnected")
			}
			return
		}

		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg SubscribeMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "subscribe" {
		return
	}

	if c.hub.ReplayEvents(c, msg.LastEventID) {
		return
	}

	reset, err := json.Marshal(ResetMsg{
		Type:   "reset",
		Reason: "requested events no longer available, refetch recommendations",
	})
	if err != nil {
		return
	}
	select {
	case c.send <- reset:
	default:
	}
}

// WritePump drains the send channel to the connection, pings, re-checks the
// API key and enforces the maximum connection lifetime.
func (c *Client) WritePump(ctx context.Context) {
	defer c.conn.CloseNow() //nolint:errcheck // best-effort close on teardown

	lifetime := time.NewTimer(time.Until(c.connectedAt.Add(maxConnLifetime)))
	defer lifetime.Stop()

	recheck := time.NewTicker(keyRecheckInterval)
	defer recheck.Stop()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	missed := 0

	for {
		select {
		case <-ping.C:
			if c.ping(ctx) {
				missed = 0
			} else if missed++; missed >= maxMissedPongs {
				c.log.Debug("closing WebSocket: missed pongs")
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()

			if err != nil {
				c.log.WithError(err).Debug("write failed")
				return
			}
		case <-recheck.C:
			if !c.keyStillValid(ctx) {
				c.conn.Close(websocket.StatusPolicyViolation, "authentication expired") //nolint:errcheck // best-effort
				return
			}
		case <-lifetime.C:
			c.conn.Close(websocket.StatusNormalClosure, "max connection lifetime exceeded") //nolint:errcheck // best-effort
			return
		}
	}
}

func (c *Client) ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return c.conn.Ping(pingCtx) == nil
}

// keyStillValid reports whether the API key still resolves to this client's
// merchant.
func (c *Client) keyStillValid(ctx context.Context) bool {
	if c.resolver == nil {
		return true
	}

	checkCtx, cancel := context.WithTimeout(ctx, keyRecheckTimeout)
	defer cancel()

	merchantID, err := c.resolver.GetMerchantByAPIKey(checkCtx, c.apiKey)
	if err != nil || merchantID != c.MerchantID {
		c.log.WithField("merchant_id", c.MerchantID).Info("closing WebSocket: api key no longer valid")
		return false
	}

	return true
}
