package session

import (
	"context"
	"errors"
)

// ErrNoProvider is returned (or panicked with) when a provider accessor is
// used on a context that carries no provider. It indicates a wiring bug.
var ErrNoProvider = errors.New("session: no artifact stream provider in context")

type providerKey struct{}

// WithProvider returns a child context carrying p.
func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext returns the provider carried by ctx, or ErrNoProvider.
func FromContext(ctx context.Context) (*Provider, error) {
	p, ok := ctx.Value(providerKey{}).(*Provider)
	if !ok || p == nil {
		return nil, ErrNoProvider
	}
	return p, nil
}

// MustFromContext is like FromContext but panics with ErrNoProvider.
// Use it where a missing provider can only mean broken wiring.
func MustFromContext(ctx context.Context) *Provider {
	p, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return p
}
