package model

import (
	"context"
	"sync"
)

// Connection semaphores are keyed by "Model" + the provider's connection
// key and shared across every Model instance in the process, so parallel
// samples contend for the same provider pool.
var (
	connMu  sync.Mutex
	connSem = make(map[string]chan struct{})
)

// acquireConnection blocks until a slot for the provider's connection key is
// free or the context is done. The returned release func must be called
// exactly once. The semaphore is sized on first use; later size overrides
// for the same key are ignored.
func acquireConnection(ctx context.Context, p Provider, cfg GenerateConfig) (func(), error) {
	size := cfg.MaxConnections
	if size <= 0 {
		size = p.MaxConnections()
	}
	if size <= 0 {
		size = DefaultMaxConnections
	}

	key := "Model" + p.ConnectionKey()
	connMu.Lock()
	sem, ok := connSem[key]
	if !ok {
		sem = make(chan struct{}, size)
		connSem[key] = sem
	}
	connMu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
