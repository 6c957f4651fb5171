// Package relay wires one chat event through classification, enrichment,
// payload build, and dispatch. Every event runs as its own task; nothing
// mutable is shared between tasks beyond the metrics collectors.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/you/bancho-relay/internal/beatmap"
	"github.com/you/bancho-relay/internal/classify"
	"github.com/you/bancho-relay/internal/core"
	"github.com/you/bancho-relay/internal/discord"
	"github.com/you/bancho-relay/internal/osuapi"
)

// ProfileFetcher resolves the event author's profile; nil means unresolved.
type ProfileFetcher interface {
	Fetch(ctx context.Context, name string) *osuapi.User
}

// SetResolver resolves a referenced beatmap set.
type SetResolver interface {
	Resolve(ctx context.Context, setID string) (*beatmap.Set, error)
}

// Dispatcher delivers a built payload to a webhook URL.
type Dispatcher interface {
	Send(ctx context.Context, url string, payload discord.Payload) error
}

// Publisher receives every relayed event, e.g. for the status stream.
type Publisher interface {
	Publish(ev core.ChatEvent)
}

// Routes maps a source channel to its destination webhook URL.
type Routes func(channel string) (string, bool)

// Relay is the per-event pipeline orchestrator.
type Relay struct {
	profiles ProfileFetcher
	sets     SetResolver
	webhook  Dispatcher
	routes   Routes
	logger   *slog.Logger
	metrics  *Metrics
	publish  Publisher

	wg sync.WaitGroup
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithPublisher attaches a status-stream publisher.
func WithPublisher(p Publisher) Option {
	return func(r *Relay) { r.publish = p }
}

// New builds a Relay with explicit dependencies; there is no package-level
// session state.
func New(profiles ProfileFetcher, sets SetResolver, webhook Dispatcher, routes Routes, opts ...Option) *Relay {
	r := &Relay{
		profiles: profiles,
		sets:     sets,
		webhook:  webhook,
		routes:   routes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle accepts one event and returns immediately; the pipeline runs in a
// detached task. A panic in a task is logged, never propagated, so a single
// poisoned message cannot take the relay down.
func (r *Relay) Handle(ev core.ChatEvent) {
	r.metrics.IncReceived(ev.Channel)
	r.metrics.AddInFlight(1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.metrics.AddInFlight(-1)
		defer func() {
			if v := recover(); v != nil {
				r.logger.Error("event pipeline panicked", "event_id", ev.ID, "panic", v)
			}
		}()
		r.Process(context.Background(), ev)
	}()
}

// Wait blocks until all in-flight event tasks finish. Used on shutdown and
// in tests.
func (r *Relay) Wait() {
	r.wg.Wait()
}

// Process runs the full pipeline for one event synchronously. Exposed so
// tests can drive it without goroutine scheduling.
func (r *Relay) Process(ctx context.Context, ev core.ChatEvent) {
	logger := r.logger.With("event_id", ev.ID, "channel", ev.Channel, "author", ev.Author)

	url, ok := r.routes(ev.Channel)
	if !ok {
		logger.Warn("no webhook mapped for channel; dropping")
		r.metrics.IncDropped("no_webhook")
		return
	}

	author := r.profiles.Fetch(ctx, ev.Author)
	if author == nil {
		// not fatal: the payload carries the fallback avatar
		logger.Warn("author profile unresolved; using fallback avatar")
		r.metrics.IncProfileFallback()
	}

	cls := classify.Classify(ev)
	if cls.Ambiguous {
		logger.Warn("action matched a trigger keyword without a beatmap link; relaying as plain action")
	}

	var set *beatmap.Set
	if cls.Kind == classify.ActionWithContent {
		resolved, err := r.sets.Resolve(ctx, cls.SetID)
		if err != nil {
			logger.Error("beatmap set resolve failed; dropping message", "set_id", cls.SetID, "err", err)
			r.metrics.IncDropped("beatmap_fetch")
			return
		}
		set = resolved
	}

	payload := discord.BuildPayload(ev, cls, author, set)

	if r.publish != nil {
		r.publish.Publish(ev)
	}

	if err := r.webhook.Send(ctx, url, payload); err != nil {
		logger.Error("webhook dispatch failed", "err", err)
		r.metrics.IncDispatchFailure()
		return
	}

	r.metrics.IncRelayed(ev.Channel)
	logger.Debug("relayed", "kind", cls.Kind.String())
}
