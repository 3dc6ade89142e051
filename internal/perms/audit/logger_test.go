// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memWriter records writes with their path, safe for concurrent use.
type memWriter struct {
	mu      sync.Mutex
	sync_   []Entry
	async   []Entry
	failAll bool
	closed  bool
}

func (w *memWriter) WriteSync(_ context.Context, e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAll {
		return errors.New("write failed")
	}
	w.sync_ = append(w.sync_, e)
	return nil
}

func (w *memWriter) WriteAsync(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAll {
		return errors.New("write failed")
	}
	w.async = append(w.async, e)
	return nil
}

func (w *memWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *memWriter) counts() (syncN, asyncN int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sync_), len(w.async)
}

func entry(effect string) Entry {
	return Entry{
		UserID:    "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		GuildID:   "01ARZ3NDEKTSV4RRFFQ69G5FB0",
		Effect:    effect,
		Timestamp: time.Now(),
	}
}

func TestMode_Valid(t *testing.T) {
	assert.True(t, ModeMinimal.Valid())
	assert.True(t, ModeDenialsOnly.Valid())
	assert.True(t, ModeAll.Valid())
	assert.False(t, Mode("verbose").Valid())
}

func TestLogger_Routing(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		effect    string
		wantSync  int
		wantAsync int
	}{
		{"minimal logs denials sync", ModeMinimal, "deny", 1, 0},
		{"minimal logs banned_deny sync", ModeMinimal, "banned_deny", 1, 0},
		{"minimal logs owner bypass async", ModeMinimal, "owner_bypass", 0, 1},
		{"minimal logs admin bypass async", ModeMinimal, "admin_bypass", 0, 1},
		{"minimal skips plain allow", ModeMinimal, "allow", 0, 0},
		{"denials_only skips bypass", ModeDenialsOnly, "owner_bypass", 0, 0},
		{"denials_only skips allow", ModeDenialsOnly, "allow", 0, 0},
		{"denials_only logs deny sync", ModeDenialsOnly, "deny", 1, 0},
		{"all logs allow async", ModeAll, "allow", 0, 1},
		{"all logs deny sync", ModeAll, "deny", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &memWriter{}
			l := NewLogger(tt.mode, w)

			require.NoError(t, l.Log(context.Background(), entry(tt.effect)))
			require.NoError(t, l.Close())

			syncN, asyncN := w.counts()
			assert.Equal(t, tt.wantSync, syncN, "sync writes")
			assert.Equal(t, tt.wantAsync, asyncN, "async writes")
		})
	}
}

func TestLogger_SyncWriteFailureSurfaces(t *testing.T) {
	w := &memWriter{failAll: true}
	l := NewLogger(ModeAll, w)
	defer func() { _ = l.Close() }()

	err := l.Log(context.Background(), entry("deny"))
	require.Error(t, err)
}

func TestLogger_AsyncDrainedOnClose(t *testing.T) {
	w := &memWriter{}
	l := NewLogger(ModeAll, w)

	for range 50 {
		require.NoError(t, l.Log(context.Background(), entry("allow")))
	}
	require.NoError(t, l.Close())

	_, asyncN := w.counts()
	assert.Equal(t, 50, asyncN, "all queued entries written before Close returns")
	assert.True(t, w.closed)
}

func TestLogger_CloseIdempotent(t *testing.T) {
	l := NewLogger(ModeMinimal, &memWriter{})
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestLogger_UnknownModeLogsNothing(t *testing.T) {
	w := &memWriter{}
	l := NewLogger(Mode("bogus"), w)

	require.NoError(t, l.Log(context.Background(), entry("deny")))
	require.NoError(t, l.Close())

	syncN, asyncN := w.counts()
	assert.Zero(t, syncN)
	assert.Zero(t, asyncN)
}
