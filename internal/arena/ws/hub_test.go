package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/pkg/contracts/events"
)

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// subscribe só retorna depois do pong, quando a assinatura já foi registrada
func subscribe(t *testing.T, c *websocket.Conn, matchID string) {
	t.Helper()
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "subscribe", MatchID: matchID}))
	require.NoError(t, c.WriteJSON(ClientMsg{Type: "ping"}))
	var pong map[string]string
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, c.ReadJSON(&pong))
	require.Equal(t, "pong", pong["type"])
}

func readEnvelope(t *testing.T, c *websocket.Conn) events.Envelope {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env events.Envelope
	require.NoError(t, c.ReadJSON(&env))
	return env
}

func TestHub_RoutesByMatch(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	one := dial(t, hub)
	all := dial(t, hub)
	subscribe(t, one, "m1")
	subscribe(t, all, AllMatches)

	other, err := events.New(events.MatchTick, "m2", events.MatchTickPayload{Round: 1})
	require.NoError(t, err)
	hub.Broadcast(other)
	mine, err := events.New(events.MatchTick, "m1", events.MatchTickPayload{Round: 2})
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), mine))

	assert.Equal(t, "m1", readEnvelope(t, one).MatchID)
	assert.Equal(t, "m2", readEnvelope(t, all).MatchID)
	assert.Equal(t, "m1", readEnvelope(t, all).MatchID)
}

func TestRedisSubscriber_ForwardsToHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	c := dial(t, hub)
	subscribe(t, c, AllMatches)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	StartRedisSubscriber(ctx, zap.NewNop(), rdb, "arena_test", hub)

	env, err := events.New(events.TournamentStarted, "", events.TournamentPayload{TournamentID: "t1"})
	require.NoError(t, err)
	b, _ := json.Marshal(env)

	require.Eventually(t, func() bool {
		n, err := rdb.Publish(ctx, "arena_test", b).Result()
		return err == nil && n > 0
	}, 2*time.Second, 20*time.Millisecond)

	got := readEnvelope(t, c)
	assert.Equal(t, events.TournamentStarted, got.Type)
}
