package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfferSamplesEveryKth(t *testing.T) {
	bus := NewBus()
	handle := bus.Register(ChannelIntermediate, "residual", 10)

	for i := 0; i < 25; i++ {
		handle.Offer(float64(i))
	}
	// 25 offers at step 10 keep offers 10 and 20.
	require.Equal(t, 2, handle.Len())

	first, ok := handle.Drain()
	require.True(t, ok)
	require.Equal(t, 9.0, first)
	second, ok := handle.Drain()
	require.True(t, ok)
	require.Equal(t, 19.0, second)

	_, ok = handle.Drain()
	require.False(t, ok)
}

func TestRegisterClampsStep(t *testing.T) {
	bus := NewBus()
	handle := bus.Register(ChannelVariables, "scale", 0)

	handle.Offer(1.0)
	handle.Offer(2.0)
	require.Equal(t, 2, handle.Len())
}

func TestLookup(t *testing.T) {
	bus := NewBus()
	registered := bus.Register(ChannelResultEntries, "rw", 1)

	require.Same(t, registered, bus.Lookup(ChannelResultEntries, "rw"))
	require.Nil(t, bus.Lookup(ChannelResultEntries, "chi2"))
	require.Nil(t, bus.Lookup(ChannelVariables, "rw"))
}

func TestSnapshotDoesNotDrain(t *testing.T) {
	bus := NewBus()
	a := bus.Register(ChannelVariables, "scale", 1)
	b := bus.Register(ChannelVariables, "width", 1)
	a.Offer(1.0)
	a.Offer(2.0)
	b.Offer(3.0)

	samples := bus.Snapshot()
	require.Len(t, samples, 3)
	require.Equal(t, Sample{Channel: ChannelVariables, Key: "scale", Value: 1.0}, samples[0])
	require.Equal(t, 2, a.Len())
	require.Equal(t, 1, b.Len())
}

func TestSnapshotEmptyBus(t *testing.T) {
	bus := NewBus()
	bus.Register(ChannelProfiles, "y", 1)
	require.Empty(t, bus.Snapshot())
}
