package providers

import (
	"context"
	"fmt"
)

// Dispatcher routes a normalized request to the adapter for its
// provider family. Remote errors propagate unretried.
type Dispatcher struct {
	backends map[Family]Backend
}

// NewDispatcher registers the given backends by family.
func NewDispatcher(backends ...Backend) *Dispatcher {
	d := &Dispatcher{backends: make(map[Family]Backend, len(backends))}
	for _, b := range backends {
		d.backends[b.Family()] = b
	}
	return d
}

// Dispatch issues the call through the family's adapter.
func (d *Dispatcher) Dispatch(ctx context.Context, family Family, req Request) (*Result, error) {
	backend, ok := d.backends[family]
	if !ok {
		return nil, fmt.Errorf("provider family %q not configured", family)
	}
	return backend.Complete(ctx, req)
}
