package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholloway/modguard/internal/pubsub"
)

func TestMemorySink_PreservesOrder(t *testing.T) {
	sink := NewMemorySink()
	phases := []Phase{PhaseValidating, PhaseCompiling, PhaseLoading, PhaseInvoking, PhaseCompleted}
	for _, p := range phases {
		sink.Record(context.Background(), Event{ExecutionID: "e1", Phase: p, Timestamp: time.Now()})
	}

	events := sink.Events()
	require.Len(t, events, len(phases))
	for i, p := range phases {
		assert.Equal(t, p, events[i].Phase)
	}
}

func TestPubSubSink_PublishesJSONEvents(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	received := make(chan pubsub.Message, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := bridge.Subscribe(ctx, TopicSecurityEvents, func(_ context.Context, msg pubsub.Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)

	sink := NewPubSubSink(bridge)
	sink.Record(ctx, Event{
		ExecutionID: "exec-1",
		ScriptID:    "mods/welcome",
		Phase:       PhaseCompleted,
		Timestamp:   time.Now(),
		Detail:      "ok",
	})

	select {
	case msg := <-received:
		assert.Equal(t, "exec-1", msg.ExecutionID)
		assert.Equal(t, "mods/welcome", msg.ScriptID)

		var event Event
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, PhaseCompleted, event.Phase)
		assert.Equal(t, "ok", event.Detail)
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event arrived on the bus")
	}
}

func TestMultiSink_FansOut(t *testing.T) {
	a := NewMemorySink()
	b := NewMemorySink()
	multi := MultiSink{a, b}

	multi.Record(context.Background(), Event{ExecutionID: "e1", Phase: PhaseFailed})

	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
	assert.Equal(t, PhaseFailed, b.Events()[0].Phase)
}
