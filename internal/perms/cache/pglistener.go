// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// NotifyChannel is the PostgreSQL notification channel the management
// repositories publish permission-affecting writes to.
const NotifyChannel = "perm_changed"

// ResyncPayload is emitted into the payload stream after a reconnect.
// Notifications sent while the connection was down are gone; the cache
// maps this payload to a full purge so nothing invalidated in absentia
// survives.
const ResyncPayload = "resync"

// PgListener implements Listener over a dedicated (non-pooled)
// PostgreSQL connection. Reconnection uses capped exponential backoff;
// while disconnected the cache decays into staleness and is bypassed.
type PgListener struct {
	connStr string

	reconnectInitial time.Duration
	reconnectMax     time.Duration
}

// NewPgListener creates a PgListener for the given connection string.
func NewPgListener(connStr string) *PgListener {
	return &PgListener{
		connStr:          connStr,
		reconnectInitial: 100 * time.Millisecond,
		reconnectMax:     30 * time.Second,
	}
}

// Listen connects, issues LISTEN, and returns a channel of payloads.
// The channel closes when the context is cancelled. Connection drops
// are handled internally with reconnection; the channel stays open
// across reconnects so the cache sees one continuous stream.
func (l *PgListener) Listen(ctx context.Context) (<-chan string, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, oops.In("cache").
			Code("LISTEN_CONNECT_FAILED").
			Wrap(err)
	}

	out := make(chan string, 64)
	go l.run(ctx, conn, out)
	return out, nil
}

func (l *PgListener) connect(ctx context.Context) (*pgx.Conn, error) {
	var conn *pgx.Conn
	backoff := retry.WithMaxDuration(2*time.Minute,
		retry.WithCappedDuration(l.reconnectMax,
			retry.NewExponential(l.reconnectInitial)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := pgx.Connect(ctx, l.connStr)
		if err != nil {
			return retry.RetryableError(err)
		}
		if _, err := c.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
			_ = c.Close(ctx)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	return conn, err
}

func (l *PgListener) run(ctx context.Context, conn *pgx.Conn, out chan<- string) {
	defer close(out)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("permission listener connection lost, reconnecting", "error", err)
			_ = conn.Close(ctx)
			conn, err = l.connect(ctx)
			if err != nil {
				slog.Error("permission listener reconnect failed", "error", err)
				return
			}
			select {
			case out <- ResyncPayload:
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case out <- notification.Payload:
		case <-ctx.Done():
			return
		}
	}
}
