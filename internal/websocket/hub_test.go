package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftoff-ranking/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(hub *Hub, id string) *Client {
	return &Client{id: id, hub: hub, send: make(chan []byte, 16), logger: discardLogger()}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestValidChannel(t *testing.T) {
	assert.True(t, ValidChannel("global"))
	assert.True(t, ValidChannel("user:42"))
	assert.Equal(t, "user:42", UserChannel(42))

	assert.False(t, ValidChannel("user:"))
	assert.False(t, ValidChannel("user:abc"))
	assert.False(t, ValidChannel("user:-1"))
	assert.False(t, ValidChannel("leaderboard:overall"))
	assert.False(t, ValidChannel(""))
}

func TestHub_BroadcastRankUpdate(t *testing.T) {
	hub := NewHub(discardLogger())
	go hub.Run()
	defer hub.Stop()

	owner := testClient(hub, "owner")
	watcher := testClient(hub, "watcher")
	other := testClient(hub, "other")
	for _, c := range []*Client{owner, watcher, other} {
		hub.Register(c)
	}
	require.NoError(t, hub.Subscribe(owner, UserChannel(7)))
	require.NoError(t, hub.Subscribe(watcher, ChannelGlobal))
	require.NoError(t, hub.Subscribe(other, UserChannel(8)))

	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount(UserChannel(7)) == 1 &&
			hub.GetSubscriberCount(ChannelGlobal) == 1 &&
			hub.GetSubscriberCount(UserChannel(8)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, hub.GetTotalConnections())

	hub.BroadcastRankUpdate(domain.UserRanking{
		UserID:     7,
		Username:   "ada",
		RankPoints: 420,
		Progress:   domain.TierProgress{Tier: domain.TierGold, Level: 3, Color: "#FFD700"},
	}, &domain.RankChangeEvent{UserID: 7, FromTier: domain.TierSilver, ToTier: domain.TierGold})

	msg := receive(t, owner)
	assert.Equal(t, MessageTypeRankUpdate, msg.Type)
	assert.Equal(t, "user:7", msg.Channel)
	data := msg.Data.(map[string]any)
	assert.Equal(t, "Gold", data["rank_tier"])
	assert.Equal(t, "Silver", data["previous_tier"])
	assert.Equal(t, true, data["tier_changed"])

	msg = receive(t, watcher)
	assert.Equal(t, ChannelGlobal, msg.Channel)

	select {
	case <-other.send:
		t.Fatal("unrelated user channel received an update")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub(discardLogger())
	go hub.Run()
	defer hub.Stop()

	c := testClient(hub, "c")
	hub.Register(c)
	require.NoError(t, hub.Subscribe(c, ChannelGlobal))
	require.Eventually(t, func() bool { return hub.GetSubscriberCount(ChannelGlobal) == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(c)
	require.Eventually(t, func() bool { return hub.GetTotalConnections() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-c.send
	assert.False(t, open)
	assert.Zero(t, hub.GetSubscriberCount(ChannelGlobal))
}

func TestClient_HandleMessage(t *testing.T) {
	hub := NewHub(discardLogger())
	c := testClient(hub, "c")

	c.handleMessage(&ClientMessage{Type: MessageTypeSubscribe, Channel: "user:abc"})
	assert.Equal(t, MessageTypeError, receive(t, c).Type)

	c.handleMessage(&ClientMessage{Type: MessageTypeSubscribe})
	assert.Equal(t, MessageTypeError, receive(t, c).Type)

	c.handleMessage(&ClientMessage{Type: MessageTypeSubscribe, Channel: "user:3"})
	ack := receive(t, c)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, "user:3", ack.Channel)

	c.handleMessage(&ClientMessage{Type: MessageTypePing})
	assert.Equal(t, MessageTypePong, receive(t, c).Type)

	c.handleMessage(&ClientMessage{Type: "dance"})
	assert.Equal(t, MessageTypeError, receive(t, c).Type)
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	u := NewUpgrader([]string{"https://app.liftoff.example"})

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, u.CheckOrigin(r), "no origin header")

	r.Header.Set("Origin", "https://app.liftoff.example")
	assert.True(t, u.CheckOrigin(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, u.CheckOrigin(r))

	assert.True(t, NewUpgrader([]string{"*"}).CheckOrigin(r))
}
