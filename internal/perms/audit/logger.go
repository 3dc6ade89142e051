// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

// Package audit provides audit logging for authorization decisions.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mode controls which decisions are logged.
type Mode string

// Audit logging modes.
const (
	ModeMinimal     Mode = "minimal"      // bypasses + denials
	ModeDenialsOnly Mode = "denials_only" // denials only
	ModeAll         Mode = "all"          // everything
)

// Valid reports whether the mode is one of the defined modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeMinimal, ModeDenialsOnly, ModeAll:
		return true
	default:
		return false
	}
}

// Entry represents a single authorization decision to be logged.
type Entry struct {
	UserID     string    `json:"user_id"`
	GuildID    string    `json:"guild_id"`
	ChannelID  string    `json:"channel_id,omitempty"`
	Effect     string    `json:"effect"`
	Reason     string    `json:"reason"`
	Missing    []string  `json:"missing,omitempty"`
	DurationUS int64     `json:"duration_us"`
	Timestamp  time.Time `json:"timestamp"`
}

// Writer is the interface for writing audit entries to a backend.
type Writer interface {
	WriteSync(ctx context.Context, entry Entry) error
	WriteAsync(entry Entry) error
	Close() error
}

var (
	channelFullCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildhall_audit_channel_full_total",
		Help: "Total number of times the async audit channel was full",
	})

	failuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildhall_audit_failures_total",
		Help: "Total number of audit logging failures",
	}, []string{"reason"})
)

// Logger routes audit entries based on mode and effect. Denials are
// written synchronously; allowed decisions go through the async path
// so the hot path never blocks on audit I/O.
type Logger struct {
	mode      Mode
	writer    Writer
	asyncChan chan Entry
	stopOnce  sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewLogger creates a Logger with the given mode and writer.
func NewLogger(mode Mode, writer Writer) *Logger {
	l := &Logger{
		mode:      mode,
		writer:    writer,
		asyncChan: make(chan Entry, 1000),
		stopChan:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncConsumer()

	return l
}

// Log routes an audit entry based on the configured mode and effect.
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	shouldLog, useSync := l.shouldLog(entry.Effect)
	if !shouldLog {
		return nil
	}

	if useSync {
		if err := l.writer.WriteSync(ctx, entry); err != nil {
			failuresCounter.WithLabelValues("sync_write").Inc()
			slog.ErrorContext(ctx, "synchronous audit write failed",
				"error", err,
				"user_id", entry.UserID,
				"effect", entry.Effect)
			return err
		}
		return nil
	}

	select {
	case l.asyncChan <- entry:
		return nil
	default:
		channelFullCounter.Inc()
		// Channel full: degrade to a synchronous write rather than
		// dropping the entry.
		if err := l.writer.WriteSync(ctx, entry); err != nil {
			failuresCounter.WithLabelValues("overflow_write").Inc()
			return err
		}
		return nil
	}
}

// shouldLog returns whether to log the entry and whether to use the
// synchronous path. Denials always go sync so the entry is durable
// before the denial is surfaced.
func (l *Logger) shouldLog(effect string) (shouldLog, useSync bool) {
	denied := effect == "deny" || effect == "banned_deny"
	bypass := effect == "owner_bypass" || effect == "admin_bypass"

	switch l.mode {
	case ModeAll:
		return true, denied
	case ModeDenialsOnly:
		return denied, denied
	case ModeMinimal:
		return denied || bypass, denied
	default:
		return false, false
	}
}

// asyncConsumer drains the async channel until Close.
func (l *Logger) asyncConsumer() {
	defer l.wg.Done()
	for {
		select {
		case entry := <-l.asyncChan:
			if err := l.writer.WriteAsync(entry); err != nil {
				failuresCounter.WithLabelValues("async_write").Inc()
				slog.Error("async audit write failed", "error", err)
			}
		case <-l.stopChan:
			// Drain whatever is left before exiting.
			for {
				select {
				case entry := <-l.asyncChan:
					if err := l.writer.WriteAsync(entry); err != nil {
						failuresCounter.WithLabelValues("async_write").Inc()
					}
				default:
					return
				}
			}
		}
	}
}

// Close stops the async consumer, drains pending entries, and closes
// the writer.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
	return l.writer.Close()
}
