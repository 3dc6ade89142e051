// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

// Package cache provides an optional caching wrapper around the
// permission resolver. The resolver itself holds no state; this
// wrapper keys resolved masks by (user, guild) and (user, channel) and
// invalidates on permission-affecting writes, delivered through
// PostgreSQL LISTEN/NOTIFY or explicit Invalidate calls.
//
// Fail-closed posture: when the notification stream is down or has not
// confirmed health within the staleness threshold, cached masks are
// not served; every lookup resolves fresh. A stale cache can only cost
// latency, never serve an elevated mask.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/guildhall/guildhall/internal/guild"
	"github.com/guildhall/guildhall/internal/perms"
	"github.com/guildhall/guildhall/internal/perms/flag"
)

// Default cache configuration values.
const (
	defaultStalenessThreshold = 30 * time.Second
)

// Listener abstracts the PostgreSQL LISTEN/NOTIFY mechanism for
// testability. Implementations return a channel that emits
// notification payloads and close it when the context is cancelled or
// the connection drops.
type Listener interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// Option configures Cache behavior.
type Option func(*config)

type config struct {
	stalenessThreshold time.Duration
	hitCounter         prometheus.Counter
	missCounter        prometheus.Counter
	lastEventGauge     prometheus.Gauge
}

// WithStalenessThreshold sets how long the cache serves entries without
// a confirmed-healthy notification stream.
func WithStalenessThreshold(d time.Duration) Option {
	return func(c *config) {
		c.stalenessThreshold = d
	}
}

// WithMetrics sets the Prometheus collectors for cache observability.
func WithMetrics(hits, misses prometheus.Counter, lastEvent prometheus.Gauge) Option {
	return func(c *config) {
		c.hitCounter = hits
		c.missCounter = misses
		c.lastEventGauge = lastEvent
	}
}

type guildKey struct {
	userID  string
	guildID string
}

type channelKey struct {
	userID    string
	channelID string
}

type channelEntry struct {
	bits    uint32
	guildID string
}

// Cache wraps a resolver with (user, guild) / (user, channel) keyed
// memoization. It implements perms.PermissionResolver.
type Cache struct {
	resolver perms.PermissionResolver
	cfg      config

	mu         sync.RWMutex
	guildMasks map[guildKey]flag.GuildPermission
	textMasks  map[channelKey]channelEntry
	voiceMasks map[channelKey]channelEntry

	// gen increments under mu on every invalidation. A mask resolved
	// before an invalidation must not be stored after it: the store is
	// dropped when gen moved between lookup and store.
	gen uint64

	// lastEvent stores the Unix timestamp in nanoseconds of the last
	// notification or successful subscribe. Zero means never connected.
	lastEvent atomic.Int64

	wg sync.WaitGroup
}

// Compile-time check that Cache implements PermissionResolver.
var _ perms.PermissionResolver = (*Cache)(nil)

// New creates a Cache over the given resolver.
func New(resolver perms.PermissionResolver, opts ...Option) *Cache {
	cfg := config{
		stalenessThreshold: defaultStalenessThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Cache{
		resolver:   resolver,
		cfg:        cfg,
		guildMasks: make(map[guildKey]flag.GuildPermission),
		textMasks:  make(map[channelKey]channelEntry),
		voiceMasks: make(map[channelKey]channelEntry),
	}
}

// GuildPermissions returns the cached mask for (user, guild) or
// resolves and caches it.
func (c *Cache) GuildPermissions(ctx context.Context, u guild.User, g guild.Guild) (flag.GuildPermission, error) {
	key := guildKey{userID: u.ID.String(), guildID: g.ID.String()}

	c.mu.RLock()
	gen := c.gen
	cached, ok := c.guildMasks[key]
	c.mu.RUnlock()
	if ok && !c.IsStale() {
		c.hit()
		return cached, nil
	}

	c.miss()
	mask, err := c.resolver.GuildPermissions(ctx, u, g)
	if err != nil {
		return 0, err
	}

	if !c.IsStale() {
		c.mu.Lock()
		if c.gen == gen {
			c.guildMasks[key] = mask
		}
		c.mu.Unlock()
	}
	return mask, nil
}

// TextPermissions returns the cached mask for (user, channel) or
// resolves and caches it.
func (c *Cache) TextPermissions(ctx context.Context, u guild.User, g guild.Guild, ch guild.Channel) (flag.TextPermission, error) {
	key := channelKey{userID: u.ID.String(), channelID: ch.ID.String()}

	c.mu.RLock()
	gen := c.gen
	entry, ok := c.textMasks[key]
	c.mu.RUnlock()
	if ok && !c.IsStale() {
		c.hit()
		return flag.TextPermission(entry.bits), nil
	}

	c.miss()
	mask, err := c.resolver.TextPermissions(ctx, u, g, ch)
	if err != nil {
		return 0, err
	}

	if !c.IsStale() {
		c.mu.Lock()
		if c.gen == gen {
			c.textMasks[key] = channelEntry{bits: uint32(mask), guildID: ch.GuildID.String()}
		}
		c.mu.Unlock()
	}
	return mask, nil
}

// VoicePermissions returns the cached mask for (user, channel) or
// resolves and caches it.
func (c *Cache) VoicePermissions(ctx context.Context, u guild.User, g guild.Guild, ch guild.Channel) (flag.VoicePermission, error) {
	key := channelKey{userID: u.ID.String(), channelID: ch.ID.String()}

	c.mu.RLock()
	gen := c.gen
	entry, ok := c.voiceMasks[key]
	c.mu.RUnlock()
	if ok && !c.IsStale() {
		c.hit()
		return flag.VoicePermission(entry.bits), nil
	}

	c.miss()
	mask, err := c.resolver.VoicePermissions(ctx, u, g, ch)
	if err != nil {
		return 0, err
	}

	if !c.IsStale() {
		c.mu.Lock()
		if c.gen == gen {
			c.voiceMasks[key] = channelEntry{bits: uint32(mask), guildID: ch.GuildID.String()}
		}
		c.mu.Unlock()
	}
	return mask, nil
}

// InvalidateUser drops every cached mask involving the user.
func (c *Cache) InvalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for key := range c.guildMasks {
		if key.userID == userID {
			delete(c.guildMasks, key)
		}
	}
	for key := range c.textMasks {
		if key.userID == userID {
			delete(c.textMasks, key)
		}
	}
	for key := range c.voiceMasks {
		if key.userID == userID {
			delete(c.voiceMasks, key)
		}
	}
}

// InvalidateGuild drops every cached mask scoped to the guild,
// including channel masks for its channels. Role, assignment, and
// ownership writes invalidate at this granularity.
func (c *Cache) InvalidateGuild(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for key := range c.guildMasks {
		if key.guildID == guildID {
			delete(c.guildMasks, key)
		}
	}
	for key, entry := range c.textMasks {
		if entry.guildID == guildID {
			delete(c.textMasks, key)
		}
	}
	for key, entry := range c.voiceMasks {
		if entry.guildID == guildID {
			delete(c.voiceMasks, key)
		}
	}
}

// InvalidateChannel drops every cached mask for the channel.
func (c *Cache) InvalidateChannel(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for key := range c.textMasks {
		if key.channelID == channelID {
			delete(c.textMasks, key)
		}
	}
	for key := range c.voiceMasks {
		if key.channelID == channelID {
			delete(c.voiceMasks, key)
		}
	}
}

// Purge drops every cached mask.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.guildMasks = make(map[guildKey]flag.GuildPermission)
	c.textMasks = make(map[channelKey]channelEntry)
	c.voiceMasks = make(map[channelKey]channelEntry)
}

// IsStale returns true if the notification stream has not confirmed
// health within the staleness threshold. A stale cache is bypassed.
func (c *Cache) IsStale() bool {
	last := c.lastEvent.Load()
	if last == 0 {
		return true // never connected
	}
	return time.Since(time.Unix(0, last)) > c.cfg.stalenessThreshold
}

// StartWithListener spawns a background goroutine that consumes
// invalidation payloads from the listener. Payloads are
// "user:<id>", "guild:<id>", or "channel:<id>"; anything else purges
// the whole cache (unknown write, invalidate conservatively).
func (c *Cache) StartWithListener(ctx context.Context, listener Listener) error {
	ch, err := listener.Listen(ctx)
	if err != nil {
		return err
	}

	c.markHealthy()

	c.wg.Add(1)
	go c.listenLoop(ctx, ch)
	return nil
}

// Wait blocks until the background goroutine has exited.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) listenLoop(ctx context.Context, ch <-chan string) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				// Stream gone: entries decay into staleness and stop
				// being served once the threshold passes.
				slog.Warn("permission cache notification stream closed")
				return
			}
			c.markHealthy()
			c.apply(payload)
		}
	}
}

func (c *Cache) apply(payload string) {
	if payload == ResyncPayload {
		c.Purge()
		return
	}
	kind, id, found := strings.Cut(payload, ":")
	if !found || id == "" {
		c.Purge()
		return
	}
	switch kind {
	case "user":
		c.InvalidateUser(id)
	case "guild":
		c.InvalidateGuild(id)
	case "channel":
		c.InvalidateChannel(id)
	default:
		c.Purge()
	}
}

func (c *Cache) markHealthy() {
	now := time.Now()
	c.lastEvent.Store(now.UnixNano())
	if c.cfg.lastEventGauge != nil {
		c.cfg.lastEventGauge.Set(float64(now.Unix()))
	}
}

func (c *Cache) hit() {
	if c.cfg.hitCounter != nil {
		c.cfg.hitCounter.Inc()
	}
}

func (c *Cache) miss() {
	if c.cfg.missCounter != nil {
		c.cfg.missCounter.Inc()
	}
}

// Collectors returns a default set of cache metrics for registration.
func Collectors() (hits, misses prometheus.Counter, lastEvent prometheus.Gauge) {
	hits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guildhall_perm_cache_hits_total",
		Help: "Total number of permission cache hits",
	})
	misses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guildhall_perm_cache_misses_total",
		Help: "Total number of permission cache misses",
	})
	lastEvent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guildhall_perm_cache_last_event",
		Help: "Unix timestamp of the last cache invalidation event",
	})
	return hits, misses, lastEvent
}
