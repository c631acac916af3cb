package realtime

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(hub *Hub, id string, buffer int) *Client {
	return &Client{id: id, hub: hub, send: make(chan []byte, buffer), logger: zerolog.Nop()}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw := <-c.send:
		msg, err := Decode(raw)
		require.NoError(t, err)
		return msg
	default:
		t.Fatalf("client %s received nothing", c.id)
	}
	return Message{}
}

func TestHubDeliversToRoomMembersOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	alice := testClient(hub, "alice", 4)
	bob := testClient(hub, "bob", 4)
	hub.Join(alice, UserRoom("u1"), TenantRoom("t1"))
	hub.Join(bob, UserRoom("u2"), TenantRoom("t1"))

	msg, err := NewMessage(EventImportProgress, map[string]int{"processed_rows": 10}, UserRoom("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Broadcast(msg))

	got := receive(t, alice)
	assert.Equal(t, EventImportProgress, got.Event)
	assert.JSONEq(t, `{"processed_rows":10}`, string(got.Data))
	assert.Empty(t, bob.send)

	msg.Rooms = []string{TenantRoom("t1")}
	assert.Equal(t, 2, hub.Broadcast(msg))
}

func TestHubDeliversOncePerClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	alice := testClient(hub, "alice", 4)
	bob := testClient(hub, "bob", 4)
	hub.Join(alice, UserRoom("u1"), TenantRoom("t1"))
	hub.Join(bob, UserRoom("u2"), TenantRoom("t1"))

	msg, err := NewMessage(EventImportComplete, nil, UserRoom("u1"), TenantRoom("t1"))
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Broadcast(msg))
	assert.Len(t, alice.send, 1)
	assert.Len(t, bob.send, 1)
}

func TestHubLeaveClosesClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := testClient(hub, "c", 1)
	hub.Join(c, UserRoom("u1"), TenantRoom("t1"))
	require.Equal(t, 1, hub.Members(TenantRoom("t1")))

	hub.Leave(c)
	hub.Leave(c)

	assert.Zero(t, hub.Members(UserRoom("u1")))
	assert.Zero(t, hub.Members(TenantRoom("t1")))
	_, open := <-c.send
	assert.False(t, open)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := testClient(hub, "slow", 1)
	hub.Join(slow, UserRoom("u1"))

	msg := Message{Rooms: []string{UserRoom("u1")}, Event: EventImportProgress}
	assert.Equal(t, 1, hub.Broadcast(msg))
	assert.Equal(t, 0, hub.Broadcast(msg))
	assert.Len(t, slow.send, 1)
}

func TestDecodeRejectsIncompleteMessages(t *testing.T) {
	_, err := Decode([]byte(`{"event":"import:complete"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	raw, err := Encode(Message{Rooms: []string{"tenant:t1"}, Event: EventImportFailed, Data: json.RawMessage(`{"error":"boom"}`)})
	require.NoError(t, err)
	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant:t1"}, msg.Rooms)
}

func TestRedisBusForwardsIntoHub(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := testClient(hub, "c", 2)
	hub.Join(c, TenantRoom("t1"))
	bus := NewRedisBus(nil, "", hub, zerolog.Nop())

	bus.forward([]byte(`{"rooms":["tenant:t1"],"event":"import:complete","data":{"failed_rows":1}}`))
	bus.forward([]byte(`garbage`))

	got := receive(t, c)
	assert.Equal(t, EventImportComplete, got.Event)
	assert.Empty(t, c.send)
}
