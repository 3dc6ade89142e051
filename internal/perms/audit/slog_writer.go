// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package audit

import (
	"context"
	"log/slog"
)

// SlogWriter writes audit entries as structured log records. It is the
// default production backend; deployments that ship audit trails to a
// separate sink implement Writer against that sink instead.
type SlogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter creates a SlogWriter. If logger is nil, the default
// logger is used.
func NewSlogWriter(logger *slog.Logger) *SlogWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogWriter{logger: logger}
}

// WriteSync writes the entry immediately.
func (w *SlogWriter) WriteSync(ctx context.Context, entry Entry) error {
	w.logger.LogAttrs(ctx, slog.LevelInfo, "authorization decision", entryAttrs(entry)...)
	return nil
}

// WriteAsync writes the entry from the consumer goroutine.
func (w *SlogWriter) WriteAsync(entry Entry) error {
	w.logger.LogAttrs(context.Background(), slog.LevelInfo, "authorization decision", entryAttrs(entry)...)
	return nil
}

// Close is a no-op; the underlying logger is owned by the caller.
func (w *SlogWriter) Close() error {
	return nil
}

func entryAttrs(entry Entry) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("user_id", entry.UserID),
		slog.String("guild_id", entry.GuildID),
		slog.String("effect", entry.Effect),
		slog.String("reason", entry.Reason),
		slog.Int64("duration_us", entry.DurationUS),
		slog.Time("timestamp", entry.Timestamp),
	}
	if entry.ChannelID != "" {
		attrs = append(attrs, slog.String("channel_id", entry.ChannelID))
	}
	if len(entry.Missing) > 0 {
		attrs = append(attrs, slog.Any("missing", entry.Missing))
	}
	return attrs
}
