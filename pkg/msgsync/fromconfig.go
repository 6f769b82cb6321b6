package msgsync

import (
	"fmt"

	"github.com/randalmurphal/msgsync/pkg/msgsync/config"
)

// NewFromConfig creates a synchronizer described by cfg. Options given here
// are applied after the configuration, so they win.
func NewFromConfig[T any](cfg config.Sync, opts ...Option) (*Synchronizer[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	policy, err := ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, &ConfigError{Field: "policy", Err: err}
	}
	prune, err := ParsePrune(cfg.Prune)
	if err != nil {
		return nil, &ConfigError{Field: "prune", Err: err}
	}

	base := []Option{
		WithName(cfg.Name),
		WithQueueSize(cfg.QueueSize),
		WithSlop(cfg.Slop.Std()),
		WithPolicy(policy),
		WithPrune(prune),
		WithAllowHeaderless(cfg.AllowHeaderless),
		WithHeaderless(cfg.HeaderlessStreams()...),
		WithMetrics(cfg.Observability.Metrics),
		WithTracing(cfg.Observability.Tracing),
	}
	return New[T](len(cfg.Streams), append(base, opts...)...)
}
