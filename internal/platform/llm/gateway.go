package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/radorder/radorder/internal/platform/metrics"
	"github.com/radorder/radorder/pkg/clinical"
)

// DefaultTimeout bounds each provider call when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Config is the explicit gateway configuration. Providers are tried in slice order.
type Config struct {
	Providers []ProviderConfig
	Timeout   time.Duration
	// RequestsPerSecond caps outbound calls per provider; zero disables limiting.
	RequestsPerSecond float64
}

type slot struct {
	provider Provider
	limiter  *rate.Limiter
}

// Gateway validates prompts against an ordered list of providers, falling
// through to the next provider on any failure.
type Gateway struct {
	slots   []slot
	timeout time.Duration
	logger  zerolog.Logger
}

// New builds a gateway from configuration. Providers without an API key are skipped.
func New(cfg Config, client *http.Client, logger zerolog.Logger) (*Gateway, error) {
	var providers []Provider
	for _, pc := range cfg.Providers {
		if pc.APIKey == "" {
			logger.Warn().Str("provider", pc.Name).Msg("validation provider has no API key; skipping")
			continue
		}
		p, err := NewProvider(pc, client)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	g := NewWithProviders(providers, cfg.Timeout, logger)
	if cfg.RequestsPerSecond > 0 {
		for i := range g.slots {
			g.slots[i].limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
		}
	}
	return g, nil
}

// NewWithProviders builds a gateway over already constructed providers.
func NewWithProviders(providers []Provider, timeout time.Duration, logger zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	slots := make([]slot, 0, len(providers))
	for _, p := range providers {
		slots = append(slots, slot{provider: p})
	}
	return &Gateway{slots: slots, timeout: timeout, logger: logger}
}

// ProviderNames returns the providers in priority order.
func (g *Gateway) ProviderNames() []string {
	names := make([]string, 0, len(g.slots))
	for _, s := range g.slots {
		names = append(names, s.provider.Name())
	}
	return names
}

// Validate sends prompt through the fallback chain and returns the first
// response that normalizes and validates. It fails with ErrServiceUnavailable
// only when every provider failed.
func (g *Gateway) Validate(ctx context.Context, prompt string) (*clinical.ValidationResult, error) {
	strategies := make([]Strategy[*clinical.ValidationResult], 0, len(g.slots))
	for _, s := range g.slots {
		s := s
		strategies = append(strategies, Strategy[*clinical.ValidationResult]{
			Name: s.provider.Name(),
			Run: func(ctx context.Context) (*clinical.ValidationResult, error) {
				return g.call(ctx, s, prompt)
			},
		})
	}

	attempt := 0
	result, outcomes, ok := FirstSuccess(ctx, strategies, func(o Outcome) {
		attempt++
		metrics.RecordProviderCall(o.Strategy, o.OK(), o.Duration)
		if o.OK() {
			g.logger.Info().Str("provider", o.Strategy).Int("attempt", attempt).
				Dur("duration", o.Duration).Msg("validation provider succeeded")
			return
		}
		g.logger.Warn().Err(o.Err).Str("provider", o.Strategy).Int("attempt", attempt).
			Dur("duration", o.Duration).Msg("validation provider failed; trying next")
	})
	if !ok {
		metrics.RecordValidationUnavailable()
		return nil, fmt.Errorf("%w: %d of %d providers failed", ErrServiceUnavailable, len(outcomes), len(g.slots))
	}
	return result, nil
}

func (g *Gateway) call(ctx context.Context, s slot, prompt string) (*clinical.ValidationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(callCtx); err != nil {
			return nil, fmt.Errorf("%s: rate limit wait: %w", s.provider.Name(), err)
		}
	}

	text, err := s.provider.Complete(callCtx, prompt)
	if err != nil {
		return nil, err
	}
	raw, err := ParseContent(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	return Canonicalize(raw)
}
