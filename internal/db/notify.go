package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/dbpool"
	"github.com/persistorai/cobuy/internal/domain"
	"github.com/persistorai/cobuy/internal/metrics"
	"github.com/persistorai/cobuy/internal/models"
)

// validChannel matches safe PostgreSQL LISTEN channel names.
var validChannel = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	listenChannel     = "sales_committed"
	initialBackoff    = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2

	// EventSaleCommitted is pushed to WebSocket subscribers for each sale.
	EventSaleCommitted = "sale.committed"
)

// Broadcaster sends events to connected clients.
type Broadcaster interface {
	BroadcastEvent(eventType, merchantID string, data json.RawMessage)
}

// salePayload is the JSON body emitted by the transactions insert trigger.
type salePayload struct {
	MerchantID    string `json:"merchant_id"`
	TransactionID string `json:"transaction_id"`
}

// NotifyBridge subscribes to PostgreSQL LISTEN/NOTIFY on the sales_committed
// channel and turns each committed sale into a background retrain.
type NotifyBridge struct {
	log   *logrus.Logger
	pool  *dbpool.Pool
	queue domain.TrainQueue
	hub   Broadcaster
}

// NewNotifyBridge creates a NotifyBridge wired to the given pool, train queue
// and hub. hub may be nil.
func NewNotifyBridge(log *logrus.Logger, pool *dbpool.Pool, queue domain.TrainQueue, hub Broadcaster) *NotifyBridge {
	return &NotifyBridge{
		log:   log,
		pool:  pool,
		queue: queue,
		hub:   hub,
	}
}

// Start launches the LISTEN/NOTIFY loop in a background goroutine.
// It verifies the initial connection before returning. The background
// goroutine handles reconnection for subsequent failures.
func (b *NotifyBridge) Start(ctx context.Context) error {
	if !validChannel.MatchString(listenChannel) {
		return fmt.Errorf("notify bridge: invalid channel name %q", listenChannel)
	}

	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("notify bridge: database not reachable: %w", err)
	}

	go b.listen(ctx)

	return nil
}

// listen acquires a connection, subscribes and processes notifications until
// the context is cancelled, reconnecting with backoff on failure.
func (b *NotifyBridge) listen(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		err := b.subscribeAndForward(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		b.log.WithError(err).WithField("retry_in", backoff).
			Warn("notify bridge connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = nextBackoff(backoff)
	}
}

func (b *NotifyBridge) subscribeAndForward(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	// LISTEN takes the channel inline, not as a parameter.
	sanitizedChannel := pgx.Identifier{listenChannel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+sanitizedChannel); err != nil {
		return fmt.Errorf("executing LISTEN: %w", err)
	}

	b.log.WithField("channel", listenChannel).Info("notify bridge listening")

	for {
		// Periodic deadline so cancellation is noticed on an idle connection.
		if err := conn.Conn().PgConn().Conn().SetReadDeadline(time.Now().Add(2 * time.Minute)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}

		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return fmt.Errorf("waiting for notification: %w", err)
		}

		b.handleNotification(notification)
	}
}

// handleNotification enqueues a retrain for the merchant named in the payload.
func (b *NotifyBridge) handleNotification(n *pgconn.Notification) {
	metrics.SalesNotifications.Inc()

	var payload salePayload
	if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
		b.log.WithError(err).Warn("dropping malformed sales notification")
		return
	}

	if _, err := uuid.Parse(payload.MerchantID); err != nil {
		b.log.WithField("pid", n.PID).Warn("dropping sales notification without valid merchant_id")
		return
	}

	b.log.WithFields(logrus.Fields{
		"merchant_id":    payload.MerchantID,
		"transaction_id": payload.TransactionID,
	}).Debug("sale committed")

	if !b.queue.Enqueue(payload.MerchantID, models.TriggerSale) {
		metrics.ErrorsTotal.WithLabelValues("train_queue_full").Inc()
	}

	if b.hub != nil {
		b.hub.BroadcastEvent(EventSaleCommitted, payload.MerchantID, json.RawMessage(n.Payload))
	}
}

// nextBackoff doubles the current backoff with ±25% jitter, capped at maxBackoff.
func nextBackoff(current time.Duration) time.Duration {
	next := current * backoffMultiplier
	if next > maxBackoff {
		next = maxBackoff
	}

	jitter := float64(next) * (0.75 + rand.Float64()*0.5) //nolint:gosec // jitter doesn't need crypto rand.

	return time.Duration(jitter)
}
