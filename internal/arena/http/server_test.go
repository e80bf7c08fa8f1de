package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/dto"
	"github.com/radieske/agent-arena/internal/arena/match"
	"github.com/radieske/agent-arena/internal/arena/matchmaking"
	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/store/memory"
	"github.com/radieske/agent-arena/internal/arena/tournament"
)

const wallet = "0x52908400098527886E0F7030069857D2E4169EE7"

type fixture struct {
	srv    *httptest.Server
	engine *match.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	for _, id := range []string{"red", "blue", "idle"} {
		require.NoError(t, st.SaveAgent(context.Background(), model.Agent{ID: id, Name: id, Status: model.AgentActive}))
	}
	log := zap.NewNop()
	eng := match.New(match.DefaultConfig(), match.Deps{Log: log, Store: st})
	t.Cleanup(eng.Close)
	q := matchmaking.NewQueue(log, st, eng, matchmaking.DefaultEntryFee, nil)
	b := tournament.New(log, st, eng, tournament.DefaultMaxBracketSize, tournament.OddDrop)
	eng.Subscribe(b.OnMatchComplete)

	srv := httptest.NewServer(NewServer(log, eng, q, b, st, nil).Router())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, engine: eng}
}

func (f *fixture) do(t *testing.T, method, path, agent string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if agent != "" {
		req.Header.Set(HeaderAgentID, agent)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (f *fixture) pair(t *testing.T) string {
	t.Helper()
	resp, _ := f.do(t, http.MethodPost, "/v1/queue/join", "red", dto.QueueJoinRequest{Mode: "ranked"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := f.do(t, http.MethodPost, "/v1/queue/join", "blue", dto.QueueJoinRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["paired"])
	return body["match_id"].(string)
}

func TestActions(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/v1/actions", "", dto.ActionRequest{Action: "attack"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/actions", "idle", dto.ActionRequest{Action: "attack"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.pair(t)

	resp, body := f.do(t, http.MethodPost, "/v1/actions", "red", dto.ActionRequest{Action: "heavy_attack"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "heavy_attack", body["action_executed"])
	assert.Equal(t, "hit", body["result"])
	assert.Equal(t, float64(70), body["your_stamina"])
	assert.Equal(t, "ongoing", body["match_status"])
	assert.Equal(t, float64(1), body["round"])

	bad := 1.5
	resp, _ = f.do(t, http.MethodPost, "/v1/actions", "red", dto.ActionRequest{Action: "attack", Intensity: &bad})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/actions", "red", dto.ActionRequest{Action: "fireball"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for i := 0; i < 2; i++ {
		resp, _ = f.do(t, http.MethodPost, "/v1/actions", "red", dto.ActionRequest{Action: "heavy_attack"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body = f.do(t, http.MethodPost, "/v1/actions", "red", dto.ActionRequest{Action: "heavy_attack"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "state")
}

func TestBets(t *testing.T) {
	f := newFixture(t)
	matchID := f.pair(t)

	resp, _ := f.do(t, http.MethodPost, "/v1/bets", "", map[string]any{
		"match_id": matchID, "agent_id": "red", "wallet_address": "0x123", "amount": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/bets", "", map[string]any{
		"match_id": matchID, "agent_id": "red", "wallet_address": wallet, "amount": 10001,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/v1/bets", "", map[string]any{
		"match_id": matchID, "agent_id": "red", "wallet_address": wallet, "amount": "250",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["bet_id"])
	assert.Equal(t, "2", body["odds"])
	assert.Equal(t, "500", body["potential_win"])

	resp, body = f.do(t, http.MethodPost, "/v1/bets", "", map[string]any{
		"match_id": matchID, "agent_id": "blue", "wallet_address": wallet, "amount": 5,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "state")

	resp, _ = f.do(t, http.MethodPost, "/v1/bets", "", map[string]any{
		"match_id": matchID, "agent_id": "idle", "wallet_address": "0x8617E340B3D01FA5F11F306F4090FD50E238070D", "amount": 5,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/v1/matches/"+matchID+"/bets", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueue(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/v1/queue/join", "red", dto.QueueJoinRequest{Mode: "ranked"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["position"])

	resp, body = f.do(t, http.MethodPost, "/v1/queue/join", "red", dto.QueueJoinRequest{Mode: "ranked"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, float64(1), body["state"].(map[string]any)["position"])

	resp, _ = f.do(t, http.MethodPost, "/v1/queue/join", "blue", dto.QueueJoinRequest{Mode: "deathmatch"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/v1/queue/leave", "red", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/v1/queue/leave", "red", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/v1/agents/red", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "active", body["status"])
}

func TestReads(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/v1/matches/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/v1/agents/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	matchID := f.pair(t)
	resp, body := f.do(t, http.MethodGet, "/v1/matches/"+matchID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "live", body["status"])

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/v1/matches", nil)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer r.Body.Close()
	var list []model.Match
	require.NoError(t, json.NewDecoder(r.Body).Decode(&list))
	assert.Len(t, list, 1)

	f.engine.Flush()
	resp, _ = f.do(t, http.MethodGet, "/v1/activity?limit=5", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/v1/history", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTournaments(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/v1/tournaments/current", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/v1/tournaments", "", dto.StartTournamentRequest{MinAgents: 8})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, float64(3), body["state"].(map[string]any)["eligible"])

	resp, body = f.do(t, http.MethodPost, "/v1/tournaments", "", dto.StartTournamentRequest{MinAgents: 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["active"])

	resp, _ = f.do(t, http.MethodPost, "/v1/tournaments", "", dto.StartTournamentRequest{MinAgents: 2})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/v1/tournaments/current", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["currentRound"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(model.ErrInvalidWallet))
	assert.Equal(t, http.StatusNotFound, statusFor(model.ErrMatchNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(model.Conflict(model.ErrBettingClosed, nil)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
