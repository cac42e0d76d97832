package suite

import (
	"context"
	"math/rand/v2"
	"sync"
)

// CorrelationContext is a suite-scoped shared store for passing values
// between scenarios. Variables support last-writer-wins set/get; pools
// support unconditional append and uniform random sampling.
type CorrelationContext struct {
	variables sync.Map

	poolsMu sync.Mutex
	pools   map[string][]any
}

// NewCorrelationContext returns an empty CorrelationContext.
func NewCorrelationContext() *CorrelationContext {
	return &CorrelationContext{pools: make(map[string][]any)}
}

// Set stores value under key, replacing any prior value.
func (c *CorrelationContext) Set(key string, value any) {
	c.variables.Store(key, value)
}

// Get returns the value stored under key, if any.
func (c *CorrelationContext) Get(key string) (any, bool) {
	return c.variables.Load(key)
}

// AddToPool appends value to key's pool unconditionally.
func (c *CorrelationContext) AddToPool(key string, value any) {
	c.poolsMu.Lock()
	c.pools[key] = append(c.pools[key], value)
	c.poolsMu.Unlock()
}

// RandomFromPool returns a uniformly-sampled element from key's pool, or
// (nil, false) if the pool is empty or unknown.
func (c *CorrelationContext) RandomFromPool(key string) (any, bool) {
	c.poolsMu.Lock()
	defer c.poolsMu.Unlock()

	items := c.pools[key]
	if len(items) == 0 {
		return nil, false
	}
	return items[rand.IntN(len(items))], true
}

type correlationContextKey struct{}

// ContextWithCorrelation attaches c to ctx. The value travels with ctx into
// the executor's Start calls and their run contexts; task invocations do not
// see it, since virtual users run under contexts of their own.
func ContextWithCorrelation(ctx context.Context, c *CorrelationContext) context.Context {
	return context.WithValue(ctx, correlationContextKey{}, c)
}

// CorrelationFromContext retrieves a CorrelationContext previously
// attached with ContextWithCorrelation.
func CorrelationFromContext(ctx context.Context) (*CorrelationContext, bool) {
	c, ok := ctx.Value(correlationContextKey{}).(*CorrelationContext)
	return c, ok
}
