package fanout

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBroker_DeliversToAllHandlers(t *testing.T) {
	broker := NewLocalBroker()

	var first, second []Message
	broker.Subscribe(func(msg Message) { first = append(first, msg) })
	broker.Subscribe(func(msg Message) { second = append(second, msg) })

	msg := Message{Target: "user:user-a", Event: "ping", Payload: json.RawMessage(`{}`), Origin: "instance-1"}
	require.NoError(t, broker.Publish(context.Background(), msg))

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, msg, first[0])
	assert.Equal(t, msg, second[0])
}

func TestLocalBroker_PreservesPublishOrder(t *testing.T) {
	broker := NewLocalBroker()

	var events []string
	broker.Subscribe(func(msg Message) { events = append(events, msg.Event) })

	for _, event := range []string{"one", "two", "three"} {
		require.NoError(t, broker.Publish(context.Background(), Message{Target: "t", Event: event}))
	}

	assert.Equal(t, []string{"one", "two", "three"}, events)
}

func TestPublisher_BroadcastEncodesPayloadAndStampsOrigin(t *testing.T) {
	broker := NewLocalBroker()
	var got []Message
	broker.Subscribe(func(msg Message) { got = append(got, msg) })

	p := NewPublisher(broker, "instance-1")
	err := p.Broadcast(context.Background(), "conversation:chat-1", "user_typing",
		map[string]any{"userId": "user-a"}, "conn-1")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "conversation:chat-1", got[0].Target)
	assert.Equal(t, "user_typing", got[0].Event)
	assert.Equal(t, "instance-1", got[0].Origin)
	assert.Equal(t, "conn-1", got[0].ExcludeConn)
	assert.JSONEq(t, `{"userId":"user-a"}`, string(got[0].Payload))
}

func TestPublisher_BroadcastRejectsUnencodablePayload(t *testing.T) {
	broker := NewLocalBroker()
	var got []Message
	broker.Subscribe(func(msg Message) { got = append(got, msg) })

	p := NewPublisher(broker, "instance-1")
	err := p.Broadcast(context.Background(), "t", "bad", make(chan int), "")

	assert.Error(t, err)
	assert.Empty(t, got)
}

func TestPublisher_ForwardPassesPayloadUnchanged(t *testing.T) {
	broker := NewLocalBroker()
	var got []Message
	broker.Subscribe(func(msg Message) { got = append(got, msg) })

	p := NewPublisher(broker, "instance-1")
	payload := json.RawMessage(`{"raw":true}`)
	require.NoError(t, p.Forward(context.Background(), "user:user-a", "new_message", payload))

	require.Len(t, got, 1)
	assert.Equal(t, payload, got[0].Payload)
	assert.Empty(t, got[0].ExcludeConn)
}
