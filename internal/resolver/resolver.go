// Package resolver turns a short-video link into a direct media URL by
// trying each configured provider in a fixed order until one succeeds.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tokgrab/internal/media"
	"tokgrab/internal/provider"
)

// Observer receives every provider outcome and final result. It is how
// metrics hook into resolution without the resolver knowing about them.
type Observer interface {
	ObserveOutcome(out media.Outcome, elapsed time.Duration)
	ObserveResult(res media.Result, elapsed time.Duration)
}

// Config tunes resolution.
type Config struct {
	// Deadline bounds a whole Resolve call. Zero means no aggregate deadline
	// beyond the per-provider timeouts.
	Deadline time.Duration

	// Retries is how many extra attempts a provider gets after a
	// NetworkError or Timeout. Zero gives every provider exactly one attempt.
	Retries int

	// RetryDelay is the wait before the first retry; it doubles per retry
	// and is capped at MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// Resolver tries providers sequentially and stops at the first success.
type Resolver struct {
	providers []provider.Provider
	cfg       Config
	observer  Observer
	logger    zerolog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithObserver attaches an outcome observer.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// New creates a resolver over providers, tried in the given order.
func New(providers []provider.Provider, cfg Config, logger zerolog.Logger, opts ...Option) *Resolver {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}

	r := &Resolver{
		providers: providers,
		cfg:       cfg,
		logger:    logger.With().Str("component", "resolver").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the provider names in the order they are tried.
func (r *Resolver) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve returns Resolved with the first provider's URL, or Failed when
// every provider failed or ctx ended first.
func (r *Resolver) Resolve(ctx context.Context, link string) media.Result {
	start := time.Now()
	logger := r.logger.With().Str("link", link).Logger()

	callCtx := ctx
	if r.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.Deadline)
		defer cancel()
	}

	attempts := make([]media.Outcome, 0, len(r.providers))
	for _, p := range r.providers {
		if callCtx.Err() != nil {
			break
		}

		out := r.try(callCtx, p, link)
		attempts = append(attempts, out)

		if out.OK() {
			logger.Info().Str("provider", out.Provider).Str("url", out.URL).Msg("video resolved")
			return r.finish(media.Resolved(out.URL, out.Provider, attempts), start)
		}
		logger.Debug().Str("provider", out.Provider).Str("outcome", out.Kind.String()).Msg("trying next provider")
	}

	reason := media.AllProvidersExhausted
	if ctx.Err() != nil {
		reason = media.Canceled
	}
	logger.Error().Str("reason", reason.String()).Int("attempts", len(attempts)).Msg("could not resolve video")
	return r.finish(media.Failed(reason, attempts), start)
}

func (r *Resolver) finish(res media.Result, start time.Time) media.Result {
	if r.observer != nil {
		r.observer.ObserveResult(res, time.Since(start))
	}
	return res
}

// try gives p one attempt plus up to cfg.Retries retries for transient failures.
func (r *Resolver) try(ctx context.Context, p provider.Provider, link string) media.Outcome {
	delay := r.cfg.RetryDelay

	var out media.Outcome
	for attempt := 0; ; attempt++ {
		out = r.call(ctx, p, link)
		if out.OK() || !retryable(out.Kind) || attempt >= r.cfg.Retries {
			return out
		}

		r.logger.Debug().Str("provider", p.Name()).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying provider")
		select {
		case <-ctx.Done():
			return out
		case <-time.After(delay):
		}

		delay *= 2
		if delay > r.cfg.MaxRetryDelay {
			delay = r.cfg.MaxRetryDelay
		}
	}
}

// call runs a single provider attempt. A panic becomes a MalformedResponse.
func (r *Resolver) call(ctx context.Context, p provider.Provider, link string) (out media.Outcome) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			err := fmt.Errorf("provider panicked: %v", v)
			r.logger.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed")
			out = media.Outcome{Provider: p.Name(), Kind: media.MalformedResponse, Err: err}
		}
		if out.Provider == "" {
			out.Provider = p.Name()
		}
		if out.Kind == media.Success && out.URL == "" {
			out.Kind = media.EmptyResponse
			out.Err = fmt.Errorf("provider reported success without a URL")
		}
		if r.observer != nil {
			r.observer.ObserveOutcome(out, time.Since(start))
		}
	}()

	return p.Resolve(ctx, link)
}

func retryable(kind media.OutcomeKind) bool {
	return kind == media.NetworkError || kind == media.Timeout
}
