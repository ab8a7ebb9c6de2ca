package health

import (
	"context"
	"errors"
)

// Pinger is anything that can probe its backing dependency. The store
// satisfies it directly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker returns a Checker named "store" that probes the persistence
// backend.
func StoreChecker(p Pinger) Checker {
	return Checker{
		Name:  "store",
		Check: p.Ping,
	}
}

// ErrProviderNotConfigured is reported by [ProviderChecker] when a provider
// the configuration asked for could not be constructed.
var ErrProviderNotConfigured = errors.New("health: provider not configured")

// ProviderChecker returns a Checker asserting that the named provider was
// constructed. The check is intentionally cheap: a live model call per
// readiness probe would burn quota, so "constructed" stands in for "ready".
// Only register this checker when the configuration requests the provider;
// deployments running purely on the deterministic path omit it.
func ProviderChecker(name string, constructed bool) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if !constructed {
				return ErrProviderNotConfigured
			}
			return nil
		},
	}
}
