// Package provider wraps the public TikTok extraction services. Each
// implementation turns a short-video link into a direct media URL or a
// typed failure outcome; none of them return errors or panic.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tokgrab/internal/httputil"
	"tokgrab/internal/media"
)

// Provider is the interface extraction services must implement.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Resolve makes one bounded attempt to turn link into a direct media URL.
	Resolve(ctx context.Context, link string) media.Outcome
}

// DefaultTimeout bounds a single provider call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Order is the fixed priority in which providers are tried.
var Order = []string{TikwmName, SsstikName, TiklydownName}

// Options configures a provider instance.
type Options struct {
	Endpoint string        // empty selects the provider's public endpoint
	Timeout  time.Duration // per call; zero selects DefaultTimeout
	Logger   zerolog.Logger
}

// New creates a provider by name.
func New(name string, opts Options) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch name {
	case TikwmName:
		p, err = NewTikwm(opts)
	case SsstikName:
		p, err = NewSsstik(opts)
	case TiklydownName:
		p, err = NewTiklydown(opts)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// base carries what every provider shares: identity, endpoint, client and logger.
type base struct {
	name     string
	endpoint string
	timeout  time.Duration
	fetcher  fetcher
	logger   zerolog.Logger
}

func newBase(name, defaultEndpoint string, opts Options) (base, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if err := httputil.ValidateEndpoint(endpoint); err != nil {
		return base{}, fmt.Errorf("%s endpoint: %w", name, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return base{
		name:     name,
		endpoint: endpoint,
		timeout:  timeout,
		fetcher:  fetcher{client: httputil.NewClient(timeout)},
		logger:   opts.Logger.With().Str("provider", name).Logger(),
	}, nil
}

func (b *base) Name() string { return b.name }

// bounded derives the per-call deadline from ctx.
func (b *base) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

func (b *base) succeed(url string) media.Outcome {
	b.logger.Debug().Str("url", url).Msg("provider returned media URL")
	return media.Outcome{Provider: b.name, Kind: media.Success, URL: url}
}

func (b *base) fail(kind media.OutcomeKind, err error) media.Outcome {
	b.logger.Warn().Err(err).Str("outcome", kind.String()).Msg("provider failed")
	return media.Outcome{Provider: b.name, Kind: kind, Err: err}
}

// failFetch classifies a transport error into Timeout or NetworkError.
func (b *base) failFetch(err error) media.Outcome {
	return b.fail(classify(err), err)
}
