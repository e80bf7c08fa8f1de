package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/match"
	"github.com/radieske/agent-arena/internal/arena/matchmaking"
	"github.com/radieske/agent-arena/internal/arena/model"
	"github.com/radieske/agent-arena/internal/arena/store"
	"github.com/radieske/agent-arena/internal/arena/tournament"
)

// HeaderAgentID é preenchido pelo gateway depois de autenticar o agente
const HeaderAgentID = "X-Agent-ID"

// Engine define as operações de partida usadas pelos handlers
type Engine interface {
	SubmitAction(ctx context.Context, agentID, action string, intensity float64) (match.ActionResult, error)
	PlaceBet(ctx context.Context, matchID, agentID, wallet string, amount decimal.Decimal) (model.Bet, error)
	GetMatch(ctx context.Context, id string) (model.Match, error)
	LiveMatches() []model.Match
	Bets(ctx context.Context, matchID string) ([]model.Bet, error)
}

type Queue interface {
	Enqueue(ctx context.Context, agentID string, mode model.Mode) (matchmaking.JoinResult, error)
	Dequeue(ctx context.Context, agentID string) error
}

type Bracket interface {
	Start(ctx context.Context, minAgents int) (tournament.State, error)
	Current() (tournament.State, bool)
}

// Server expõe a API REST da arena
type Server struct {
	log     *zap.Logger
	engine  Engine
	queue   Queue
	bracket Bracket
	store   store.Store
	ws      http.HandlerFunc
}

func NewServer(log *zap.Logger, e Engine, q Queue, b Bracket, s store.Store, ws http.HandlerFunc) *Server {
	return &Server{log: log, engine: e, queue: q, bracket: b, store: s, ws: ws}
}

// Router retorna o roteador chi com todas as rotas
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/v1/actions", s.submitAction)
	r.Post("/v1/bets", s.placeBet)
	r.Post("/v1/queue/join", s.joinQueue)
	r.Post("/v1/queue/leave", s.leaveQueue)

	r.Get("/v1/matches", s.listMatches)
	r.Get("/v1/matches/{id}", s.getMatch)
	r.Get("/v1/matches/{id}/bets", s.listBets)
	r.Get("/v1/history", s.listHistory)
	r.Get("/v1/activity", s.listActivity)
	r.Get("/v1/agents/{id}", s.getAgent)

	r.Post("/v1/tournaments", s.startTournament)
	r.Get("/v1/tournaments/current", s.currentTournament)

	if s.ws != nil {
		r.Get("/ws", s.ws)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func agentID(r *http.Request) string {
	return r.Header.Get(HeaderAgentID)
}

// limit lê ?limit= com default 50 e teto 200
func limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 50
	}
	if n > 200 {
		return 200
	}
	return n
}

var validationErrs = []error{
	model.ErrUnknownAction,
	model.ErrInvalidWallet,
	model.ErrInvalidAmount,
	model.ErrInvalidMode,
	model.ErrSideNotInMatch,
}

var notFoundErrs = []error{
	model.ErrMatchNotFound,
	model.ErrAgentNotFound,
	model.ErrNotFound,
}

var conflictErrs = []error{
	model.ErrAlreadyQueued,
	model.ErrAlreadyInMatch,
	model.ErrInsufficientBudget,
	model.ErrInsufficientStamina,
	model.ErrMatchNotLive,
	model.ErrNotAParticipant,
	model.ErrBettingClosed,
	model.ErrDuplicateBet,
	model.ErrAgentNotEligible,
	model.ErrTournamentAlreadyActive,
	model.ErrNotEnoughParticipants,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor mapeia erros do core: validação 400, lookup 404, conflito 409
func statusFor(err error) int {
	switch {
	case isAny(err, validationErrs):
		return http.StatusBadRequest
	case isAny(err, notFoundErrs):
		return http.StatusNotFound
	case isAny(err, conflictErrs):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorBody(err))
}
