package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursewright/coursewright/internal/logging"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var called bool
	m.On(EventServerStart, "test", func(_ context.Context, p Payload) error {
		called = true
		assert.Equal(t, EventServerStart, p.Event)
		return nil
	})

	m.Emit(context.Background(), Payload{Event: EventServerStart})
	assert.True(t, called)
}

func TestManager_Emit_MultipleHandlers(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventMessageAdded, "first", func(_ context.Context, _ Payload) error {
		order = append(order, "first")
		return nil
	})
	m.On(EventMessageAdded, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), Payload{Event: EventMessageAdded})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManager_Emit_WithData(t *testing.T) {
	m := testManager()

	var got Payload
	m.On(EventStateChanged, "test", func(_ context.Context, p Payload) error {
		got = p
		return nil
	})

	m.Emit(context.Background(), Payload{
		Event:     EventStateChanged,
		SessionID: "sess-1",
		Data: map[string]any{
			"from": "initial",
			"to":   "template_selection",
		},
	})

	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "initial", got.Data["from"])
	assert.Equal(t, "template_selection", got.Data["to"])
}

func TestManager_Emit_HandlerError(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventServerStart, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventServerStart, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	// Should not panic; second handler should still run
	m.Emit(context.Background(), Payload{Event: EventServerStart})
	assert.True(t, secondCalled)
}

func TestManager_Emit_NoHandlers(t *testing.T) {
	m := testManager()
	// Should not panic
	m.Emit(context.Background(), Payload{Event: EventServerStop})
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var callCount int
	m.On(EventServerStart, "removable", func(_ context.Context, _ Payload) error {
		callCount++
		return nil
	})

	m.Emit(context.Background(), Payload{Event: EventServerStart})
	assert.Equal(t, 1, callCount)

	m.Off(EventServerStart, "removable")
	m.Emit(context.Background(), Payload{Event: EventServerStart})
	assert.Equal(t, 1, callCount) // should not have been called again
}

func TestManager_Off_KeepsOthers(t *testing.T) {
	m := testManager()

	var keepCalled int
	m.On(EventServerStart, "remove-me", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventServerStart, "keep-me", func(_ context.Context, _ Payload) error {
		keepCalled++
		return nil
	})

	m.Off(EventServerStart, "remove-me")
	m.Emit(context.Background(), Payload{Event: EventServerStart})
	assert.Equal(t, 1, keepCalled)
}

func TestManager_EmitAsync(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)

	m.On(EventSessionSaved, "async1", func(_ context.Context, _ Payload) error {
		count.Add(1)
		wg.Done()
		return nil
	})
	m.On(EventSessionSaved, "async2", func(_ context.Context, _ Payload) error {
		count.Add(1)
		wg.Done()
		return nil
	})

	m.EmitAsync(context.Background(), Payload{Event: EventSessionSaved})

	// Wait with timeout
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}

	assert.Equal(t, int32(2), count.Load())
}

func TestManager_Count(t *testing.T) {
	m := testManager()

	assert.Equal(t, 0, m.Count(EventServerStart))

	m.On(EventServerStart, "h1", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 1, m.Count(EventServerStart))

	m.On(EventServerStart, "h2", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 2, m.Count(EventServerStart))
}

func TestManager_Events(t *testing.T) {
	m := testManager()

	m.On(EventServerStart, "h1", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventMessageAdded, "h2", func(_ context.Context, _ Payload) error { return nil })

	events := m.Events()
	assert.Len(t, events, 2)
	assert.Contains(t, events, EventServerStart)
	assert.Contains(t, events, EventMessageAdded)
}

func TestAllEvents_NotEmpty(t *testing.T) {
	require.NotEmpty(t, AllEvents)
	assert.Contains(t, AllEvents, EventSessionCreated)
	assert.Contains(t, AllEvents, EventSessionCompleted)
}
