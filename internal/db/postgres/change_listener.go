package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/UjjawalMishra93/civic-issue-system/internal/realtime"
)

// ChangeChannel is the NOTIFY channel written by the notify_issue_change trigger
const ChangeChannel = "issue_changes"

// ChangeListener turns Postgres NOTIFY payloads into realtime changes
type ChangeListener struct {
	publisher realtime.Publisher
	logger    *slog.Logger
	dsn       string
}

// NewChangeListener creates a listener on ChangeChannel.
// It opens its own connection; dsn is the same URL as the main pool.
func NewChangeListener(dsn string, publisher realtime.Publisher, logger *slog.Logger) *ChangeListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeListener{
		dsn:       dsn,
		publisher: publisher,
		logger:    logger,
	}
}

// Start listens until ctx is cancelled
func (l *ChangeListener) Start(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Warn("change listener connection event", "event", ev, "error", err)
		}
	})
	defer func() {
		if err := listener.Close(); err != nil {
			l.logger.Debug("failed to close change listener", "error", err)
		}
	}()

	if err := listener.Listen(ChangeChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}

	l.logger.Info("listening for issue changes", "channel", ChangeChannel)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("change listener shutting down")
			return ctx.Err()

		case n := <-listener.Notify:
			if n == nil {
				// Reconnected; anything sent meanwhile was lost, so force a refetch
				l.logger.Info("change listener reconnected, requesting full refresh")
				l.publisher.Publish(ctx, realtime.Change{
					Table: realtime.TableIssues,
					Type:  realtime.ChangeUpdate,
				})
				continue
			}

			change, err := realtime.DecodeChange([]byte(n.Extra))
			if err != nil {
				l.logger.Warn("skipping malformed change notification", "error", err)
				continue
			}
			l.publisher.Publish(ctx, change)

		case <-time.After(90 * time.Second):
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("change listener ping failed", "error", err)
				}
			}()
		}
	}
}
