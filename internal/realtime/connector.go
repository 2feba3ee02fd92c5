package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Publisher receives decoded changes
type Publisher interface {
	Publish(ctx context.Context, change Change)
}

// Connector joins the hosted backend's realtime channel and publishes its
// postgres_changes events
type Connector struct {
	publisher         Publisher
	logger            *slog.Logger
	wsURL             string
	accessToken       string
	reconnectDelay    time.Duration
	readTimeout       time.Duration
	heartbeatInterval time.Duration
}

// NewConnector creates a websocket connector that publishes decoded changes
func NewConnector(publisher Publisher, wsURL string, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		publisher:         publisher,
		wsURL:             wsURL,
		logger:            logger,
		reconnectDelay:    5 * time.Second,
		readTimeout:       60 * time.Second,
		heartbeatInterval: 30 * time.Second,
	}
}

// WithAccessToken sets the token sent with the channel join
func (c *Connector) WithAccessToken(token string) *Connector {
	c.accessToken = token
	return c
}

// WithReconnectDelay overrides the delay between reconnect attempts
func (c *Connector) WithReconnectDelay(d time.Duration) *Connector {
	c.reconnectDelay = d
	return c
}

// Start consumes events until ctx is cancelled, reconnecting on errors
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Info("starting realtime change consumer", "url", c.wsURL)

	for {
		if err := c.connect(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("realtime change consumer shutting down")
				return ctx.Err()
			}
			c.logger.Warn("realtime connection error, retrying",
				"error", err,
				"retry_in", c.reconnectDelay)
		}

		select {
		case <-ctx.Done():
			c.logger.Info("realtime change consumer shutting down")
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// connect joins the change channel and processes frames until the
// connection fails or the channel is closed
func (c *Connector) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to change stream: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			c.logger.Debug("failed to close websocket connection", "error", closeErr)
		}
	}()

	var refs atomic.Uint64
	nextRef := func() string { return strconv.FormatUint(refs.Add(1), 10) }

	joinRef := nextRef()
	join, err := joinMessage(joinRef, c.accessToken)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		return fmt.Errorf("failed to join %s: %w", ChannelTopic, err)
	}

	c.logger.Info("connected to realtime change stream", "topic", ChannelTopic)

	if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		c.logger.Warn("failed to set read deadline", "error", err)
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	stop := func() { closeOnce.Do(func() { close(done) }) }
	defer stop()

	// Unblock ReadMessage on shutdown
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	// Only writer once the join is sent
	go func() {
		ticker := time.NewTicker(c.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				frame, err := heartbeatMessage(nextRef())
				if err == nil {
					_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
					err = conn.WriteMessage(websocket.TextMessage, frame)
				}
				if err != nil {
					c.logger.Warn("failed to send heartbeat", "error", err)
					stop()
					_ = conn.Close()
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			c.logger.Warn("failed to extend read deadline", "error", err)
		}

		var msg channelMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("skipping malformed channel frame", "error", err)
			continue
		}

		switch msg.Event {
		case eventPostgresChanges:
			change, err := msg.change()
			if err != nil {
				c.logger.Warn("skipping malformed change frame", "error", err)
				continue
			}
			c.publisher.Publish(ctx, change)

		case eventReply:
			if msg.Ref == nil || *msg.Ref != joinRef {
				continue
			}
			var reply replyPayload
			if err := json.Unmarshal(msg.Payload, &reply); err != nil || reply.Status != "ok" {
				return fmt.Errorf("join %s rejected: %s", ChannelTopic, string(msg.Payload))
			}
			c.logger.Info("joined realtime channel", "topic", ChannelTopic)

		case eventError, eventClose:
			if msg.Topic == ChannelTopic {
				return fmt.Errorf("channel %s ended: %s", ChannelTopic, msg.Event)
			}

		default:
			c.logger.Debug("ignoring channel event", "event", msg.Event, "topic", msg.Topic)
		}
	}
}
