package broker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arenaoj/judge/internal/broker"
)

func TestPrefetchCoversPoolAndQueue(t *testing.T) {
	// the bounded job queue has capacity equal to the pool size, so the
	// consumer must be allowed pool + queue unacked deliveries in flight
	for _, poolSize := range []int{1, 4, 16} {
		require.Equal(t, 2*poolSize, broker.PrefetchFor(poolSize))
	}
}
