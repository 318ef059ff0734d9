package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamControllerOrderNoGapsNoDuplicates(t *testing.T) {
	sc := NewStreamController(4)

	var wg sync.WaitGroup
	received := make([]StreamEvent, 0, 50)
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			ev, ok := sc.Next()
			if !ok {
				return
			}
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
		}
	}()

	for i := 0; i < 50; i++ {
		sc.Emit("stage:progress", "build", i)
	}
	sc.Close()
	wg.Wait()

	require.Len(t, received, 50)
	for i, ev := range received {
		assert.Equal(t, uint64(i), ev.Sequence)
	}
}

func TestStreamControllerCloseIdempotent(t *testing.T) {
	sc := NewStreamController(4)
	sc.Close()
	sc.Close() // must not panic

	_, ok := sc.Next()
	assert.False(t, ok)
}

func TestStreamControllerEmitAfterCloseDropped(t *testing.T) {
	sc := NewStreamController(4)
	sc.Close()
	sc.Emit("heartbeat", "", nil) // silently dropped, no panic

	_, ok := sc.Next()
	assert.False(t, ok)
}

func TestStreamControllerPushSubscriber(t *testing.T) {
	sc := NewStreamController(4)
	var got []StreamEvent
	unsub := sc.Subscribe(func(ev StreamEvent) {
		got = append(got, ev)
	})
	sc.Emit("cost:update", "", 1)
	sc.Emit("cost:update", "", 2)
	unsub()
	sc.Emit("cost:update", "", 3)

	require.Len(t, got, 2)
	assert.Equal(t, uint64(0), got[0].Sequence)
	assert.Equal(t, uint64(1), got[1].Sequence)
}

func TestFormatSSE(t *testing.T) {
	sc := NewStreamController(4)
	sc.Emit(EvHeartbeat, "", nil)
	ev, ok := sc.Next()
	require.True(t, ok)

	line, err := FormatSSE(ev)
	require.NoError(t, err)
	assert.Contains(t, line, "event:heartbeat\n")
	assert.Contains(t, line, "id:0\n")
	assert.Contains(t, line, "data:")
}
