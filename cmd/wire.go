package cmd

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tokgrab/internal/config"
	"tokgrab/internal/provider"
	"tokgrab/internal/resolver"
)

// buildProviders instantiates every enabled provider in failover order.
func buildProviders(c *config.Config, log zerolog.Logger) ([]provider.Provider, error) {
	var providers []provider.Provider
	for _, name := range provider.Order {
		pc, _ := c.Providers.Get(name)
		if !pc.Enabled {
			log.Debug().Str("provider", name).Msg("provider disabled")
			continue
		}
		p, err := provider.New(name, provider.Options{
			Endpoint: pc.Endpoint,
			Timeout:  pc.Timeout,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating provider %s: %w", name, err)
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, errors.New("no providers enabled")
	}
	return providers, nil
}

// buildResolver wires enabled providers into a Resolver.
func buildResolver(c *config.Config, log zerolog.Logger, opts ...resolver.Option) (*resolver.Resolver, error) {
	providers, err := buildProviders(c, log)
	if err != nil {
		return nil, err
	}
	res := resolver.New(providers, resolver.Config{
		Deadline:   c.ResolveDeadline(),
		Retries:    c.Resolver.Retries,
		RetryDelay: c.Resolver.RetryDelay,
	}, log, opts...)

	log.Debug().Strs("providers", res.Providers()).Dur("deadline", c.ResolveDeadline()).Msg("resolver ready")
	return res, nil
}
