package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/agent-arena/internal/arena/dto"
	"github.com/radieske/agent-arena/internal/arena/model"
)

func errorBody(err error) dto.ErrorResponse {
	return dto.ErrorResponse{Error: err.Error(), State: model.StateOf(err)}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: msg})
}

// submitAction aplica uma ação de combate do agente autenticado
func (s *Server) submitAction(w http.ResponseWriter, r *http.Request) {
	id := agentID(r)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "agent id required"})
		return
	}
	var req dto.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	intensity := 1.0
	if req.Intensity != nil {
		if *req.Intensity < 0 || *req.Intensity > 1 {
			badRequest(w, "intensity must be between 0 and 1")
			return
		}
		intensity = *req.Intensity
	}

	res, err := s.engine.SubmitAction(r.Context(), id, req.Action, intensity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := "ongoing"
	if res.Completed {
		status = "completed"
	}
	writeJSON(w, http.StatusOK, dto.ActionResponse{
		ActionExecuted: res.Result.Action,
		Result:         res.Result.Outcome,
		DamageDealt:    res.Result.Damage,
		YourHP:         res.Result.ActorHP,
		OpponentHP:     res.Result.OpponentHP,
		YourStamina:    res.Result.ActorStamina,
		Round:          res.Round,
		TimeRemaining:  res.TimeRemaining,
		MatchStatus:    status,
	})
}

// placeBet cria um ticket numa partida ao vivo
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	if req.MatchID == "" || req.AgentID == "" {
		badRequest(w, "match_id and agent_id required")
		return
	}
	b, err := s.engine.PlaceBet(r.Context(), req.MatchID, req.AgentID, req.WalletAddress, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		BetID:        b.ID,
		Odds:         b.Odds,
		PotentialWin: b.PotentialWin,
		Status:       string(b.Status),
	})
}

func (s *Server) joinQueue(w http.ResponseWriter, r *http.Request) {
	id := agentID(r)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "agent id required"})
		return
	}
	var req dto.QueueJoinRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
	}
	mode, err := model.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.queue.Enqueue(r.Context(), id, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.QueueJoinResponse{
		Position: res.Position,
		Paired:   res.Paired,
		Opponent: res.Opponent,
		MatchID:  res.MatchID,
	})
}

// leaveQueue é idempotente; a taxa de entrada não é devolvida
func (s *Server) leaveQueue(w http.ResponseWriter, r *http.Request) {
	id := agentID(r)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "agent id required"})
		return
	}
	if err := s.queue.Dequeue(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.LiveMatches())
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.engine.GetMatch(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	bets, err := s.engine.Bets(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bets)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := s.store.ListHistory(r.Context(), limit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	acts, err := s.store.ListActivity(r.Context(), limit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) startTournament(w http.ResponseWriter, r *http.Request) {
	var req dto.StartTournamentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
	}
	st, err := s.bracket.Start(r.Context(), req.MinAgents)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) currentTournament(w http.ResponseWriter, r *http.Request) {
	st, ok := s.bracket.Current()
	if !ok {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "no tournament"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}
