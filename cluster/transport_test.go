package cluster

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodius/graphsync/logger"
)

func TestBroadcastDeliversToSubscriber(t *testing.T) {
	received := make(chan Envelope, 1)

	a, err := NewTransport("peer-a", "127.0.0.1", 19000, 50, logger.Nop(), nil, nil)
	require.NoError(t, err)
	defer a.Close()

	b, err := NewTransport("peer-b", "127.0.0.1", 19010, 50, logger.Nop(),
		func(env Envelope) { received <- env }, nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.ConnectSubscriber("peer-a", "127.0.0.1", 19000))
	time.Sleep(50 * time.Millisecond)

	body, _ := json.Marshal(ManageInstance{InstanceKey: "g1"})
	a.Broadcast(PayloadManageInstance, body)

	select {
	case env := <-received:
		var tp TypedPayload
		require.NoError(t, json.Unmarshal(env.Payload, &tp))
		assert.Equal(t, PayloadManageInstance, tp.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestSendDirectGetsResponse(t *testing.T) {
	a, err := NewTransport("peer-a", "127.0.0.1", 19020, 50, logger.Nop(), nil, nil)
	require.NoError(t, err)
	defer a.Close()

	b, err := NewTransport("peer-b", "127.0.0.1", 19030, 50, logger.Nop(), nil,
		func(env Envelope) Envelope {
			return Envelope{Payload: json.RawMessage(`{"ack":true}`)}
		})
	require.NoError(t, err)
	defer b.Close()

	resp, err := a.SendDirect(context.Background(), "peer-b", "127.0.0.1", 19030,
		json.RawMessage(`{"hello":true}`), 2*time.Second)
	require.NoError(t, err)

	var ack struct{ Ack bool `json:"ack"` }
	require.NoError(t, json.Unmarshal(resp.Payload, &ack))
	assert.True(t, ack.Ack)
}

func TestSendDirectFailsWithNoListener(t *testing.T) {
	a, err := NewTransport("peer-a", "127.0.0.1", 19040, 50, logger.Nop(), nil, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.SendDirect(context.Background(), "peer-ghost", "127.0.0.1", 19099,
		json.RawMessage(`{}`), 200*time.Millisecond)
	assert.Error(t, err)
}
