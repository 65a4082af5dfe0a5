package events

import (
	"context"
	"testing"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(tripID string, eventType types.EventType) types.Event {
	return types.Event{
		BaseEvent: types.BaseEvent{
			Type:   eventType,
			TripID: tripID,
		},
		Metadata: types.EventMetadata{Source: "test"},
		Payload:  []byte(`{}`),
	}
}

func receive(t *testing.T, ch <-chan types.Event) types.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return types.Event{}
	}
}

func TestMemoryPublisher_FanOut(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher()

	a, err := p.Subscribe(ctx, "t1", "a")
	require.NoError(t, err)
	b, err := p.Subscribe(ctx, "t1", "b")
	require.NoError(t, err)
	other, err := p.Subscribe(ctx, "t2", "a")
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, "t1", testEvent("t1", types.EventTypeTripUpdated)))

	evA := receive(t, a)
	evB := receive(t, b)
	assert.Equal(t, types.EventTypeTripUpdated, evA.Type)
	assert.NotEmpty(t, evA.ID)
	assert.Equal(t, 1, evA.Version)
	assert.Equal(t, evA.ID, evB.ID)
	assert.Empty(t, other)
}

func TestMemoryPublisher_Filters(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher()

	ch, err := p.Subscribe(ctx, "t1", "a", types.EventTypeParticipantUpdated)
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, "t1", testEvent("t1", types.EventTypeTripUpdated)))
	require.NoError(t, p.Publish(ctx, "t1", testEvent("t1", types.EventTypeParticipantUpdated)))

	assert.Equal(t, types.EventTypeParticipantUpdated, receive(t, ch).Type)
	assert.Empty(t, ch)
}

func TestMemoryPublisher_DuplicateAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher()

	ch, err := p.Subscribe(ctx, "t1", "a")
	require.NoError(t, err)
	_, err = p.Subscribe(ctx, "t1", "a")
	assert.Error(t, err)

	require.NoError(t, p.Unsubscribe(ctx, "t1", "a"))
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, p.Subscribers("t1"))
	assert.Error(t, p.Unsubscribe(ctx, "t1", "a"))
}

func TestMemoryPublisher_Closed(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher()

	ch, err := p.Subscribe(ctx, "t1", "a")
	require.NoError(t, err)
	p.Close()

	_, open := <-ch
	assert.False(t, open)
	assert.Error(t, p.Publish(ctx, "t1", testEvent("t1", types.EventTypeTripUpdated)))
	_, err = p.Subscribe(ctx, "t1", "b")
	assert.Error(t, err)
}

func TestPublishEventWithContext(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher()

	ch, err := p.Subscribe(ctx, "t1", "a")
	require.NoError(t, err)

	err = PublishEventWithContext(ctx, p, types.EventTypeParticipantUpdated, "t1", "u1",
		map[string]string{"userId": "u1"}, "test")
	require.NoError(t, err)

	ev := receive(t, ch)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "test", ev.Metadata.Source)
	assert.JSONEq(t, `{"userId":"u1"}`, string(ev.Payload))
}
