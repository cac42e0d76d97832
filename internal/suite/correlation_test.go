package suite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCorrelationContextSetGet(t *testing.T) {
	c := NewCorrelationContext()
	c.Set("sessionToken", "abc123")

	value, ok := c.Get("sessionToken")
	require.True(t, ok)
	require.Equal(t, "abc123", value)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestCorrelationContextPoolOperations(t *testing.T) {
	c := NewCorrelationContext()

	_, ok := c.RandomFromPool("userIds")
	require.False(t, ok)

	c.AddToPool("userIds", "u1")
	c.AddToPool("userIds", "u2")
	c.AddToPool("userIds", "u3")

	value, ok := c.RandomFromPool("userIds")
	require.True(t, ok)
	require.Contains(t, []string{"u1", "u2", "u3"}, value)
}

func TestContextWithCorrelationRoundTrips(t *testing.T) {
	c := NewCorrelationContext()
	ctx := ContextWithCorrelation(context.Background(), c)

	got, ok := CorrelationFromContext(ctx)
	require.True(t, ok)
	require.Same(t, c, got)

	_, ok = CorrelationFromContext(context.Background())
	require.False(t, ok)
}
