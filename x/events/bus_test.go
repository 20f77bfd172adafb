package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus(zerolog.Nop())
	defer bus.Close()

	sub := bus.Subscribe()
	payload := TokenAllowlistUpdated{Token: common.HexToAddress("0x01"), Allowed: true}
	bus.Publish(TypeTokenAllowlistUpdated, payload)

	evt := <-sub
	assert.Equal(t, TypeTokenAllowlistUpdated, evt.Type)
	assert.Equal(t, payload, evt.Payload)
}

func TestBusRecentWindow(t *testing.T) {
	t.Parallel()

	bus := NewBus(zerolog.Nop())
	bus.recentCap = 4

	for i := 0; i < 10; i++ {
		bus.Publish(TypePausedChanged, PausedChanged{Paused: i%2 == 0})
	}

	all := bus.Recent(0)
	require.Len(t, all, 4)

	limited := bus.Recent(2)
	require.Len(t, limited, 2)
	assert.Equal(t, all[2:], limited)
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	bus := NewBus(zerolog.Nop())
	defer bus.Close()

	_ = bus.Subscribe()
	for i := 0; i < defaultSubscriberBuffer+5; i++ {
		bus.Publish(TypeClaimPaid, nil)
	}

	assert.Equal(t, uint64(5), bus.Dropped())
}
