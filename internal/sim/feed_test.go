package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_LatestWins(t *testing.T) {
	var f Feed[int]
	ch, cancel := f.Subscribe()
	defer cancel()

	f.Publish(1)
	f.Publish(2)
	f.Publish(3)

	select {
	case v := <-ch:
		assert.Equal(t, 3, v)
	default:
		t.Fatal("expected a value")
	}

	select {
	case v := <-ch:
		t.Fatalf("unexpected queued value %d", v)
	default:
	}
}

func TestFeed_FanOut(t *testing.T) {
	var f Feed[string]
	a, cancelA := f.Subscribe()
	b, cancelB := f.Subscribe()
	defer cancelB()
	require.Equal(t, 2, f.Len())

	f.Publish("tick")
	assert.Equal(t, "tick", <-a)
	assert.Equal(t, "tick", <-b)

	cancelA()
	cancelA()
	assert.Equal(t, 1, f.Len())

	_, ok := <-a
	assert.False(t, ok, "cancelled channel must be closed")

	f.Publish("next")
	assert.Equal(t, "next", <-b)
}
