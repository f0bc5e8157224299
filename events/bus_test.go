package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func collect(t *testing.T, b *Bus) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-b.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for bus to close")
		}
	}
}

func TestBusPreservesOrder(t *testing.T) {
	b := NewBus()
	b.Emit(ConnectionStateChanged{State: Connecting})
	b.Emit(ConnectionStateChanged{State: Connected})
	b.Emit(SyncCompleted{})
	b.Close()

	got := collect(t, b)
	assert.Equal(t, []Event{
		ConnectionStateChanged{State: Connecting},
		ConnectionStateChanged{State: Connected},
		SyncCompleted{},
	}, got)
}

func TestBusEmitDoesNotBlockWithoutConsumer(t *testing.T) {
	b := NewBus()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Emit(MessageSent{MessageID: "m"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked")
	}
	b.Close()
	assert.Len(t, collect(t, b), 1000)
}

func TestBusManyProducers(t *testing.T) {
	b := NewBus()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Emit(TypingStarted{ConversationID: "c"})
			}
		}()
	}
	wg.Wait()
	b.Close()
	assert.Len(t, collect(t, b), 400)
}

func TestBusDropsAfterClose(t *testing.T) {
	b := NewBus()
	b.Close()
	b.Emit(SyncCompleted{})
	b.Close()
	assert.Empty(t, collect(t, b))
}

func TestBusStopWithoutConsumer(t *testing.T) {
	b := NewBus()
	for i := 0; i < 10; i++ {
		b.Emit(SyncCompleted{})
	}
	b.Close()
	b.Stop()
	b.Stop()
	b.Emit(SyncCompleted{})

	// at most the event the pump was already offering gets through
	assert.LessOrEqual(t, len(collect(t, b)), 1)
}

func TestBusStopIdle(t *testing.T) {
	b := NewBus()
	b.Stop()
	assert.Empty(t, collect(t, b))
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
	assert.Equal(t, "state(9)", ConnectionState(9).String())
}
