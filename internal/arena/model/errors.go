package model

import (
	"errors"
	"fmt"
)

var (
	// validação
	ErrUnknownAction = errors.New("unknown action")
	ErrInvalidWallet = errors.New("invalid wallet address")
	ErrInvalidAmount = errors.New("invalid bet amount")
	ErrInvalidMode   = errors.New("invalid mode")

	// conflitos de estado
	ErrAlreadyQueued           = errors.New("agent already queued")
	ErrAlreadyInMatch          = errors.New("agent already in a live match")
	ErrInsufficientBudget      = errors.New("insufficient budget for entry fee")
	ErrInsufficientStamina     = errors.New("insufficient stamina")
	ErrMatchNotLive            = errors.New("match is not live")
	ErrNotAParticipant         = errors.New("agent is not a participant of this match")
	ErrBettingClosed           = errors.New("match is not accepting bets")
	ErrDuplicateBet            = errors.New("wallet already has a bet on this match")
	ErrSideNotInMatch          = errors.New("agent is not in this match")
	ErrAgentNotEligible        = errors.New("agent is not eligible")
	ErrTournamentAlreadyActive = errors.New("tournament already active")
	ErrNotEnoughParticipants   = errors.New("not enough eligible agents")

	// lookup
	ErrMatchNotFound = errors.New("match not found")
	ErrAgentNotFound = errors.New("agent not found")
	ErrNotFound      = errors.New("not found")
)

// ConflictError carrega o estado atual junto do erro, para o chamador decidir se tenta de novo
type ConflictError struct {
	Err   error
	State map[string]any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v (state: %v)", e.Err, e.State)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// Conflict embrulha um erro de conflito com o estado observado
func Conflict(err error, state map[string]any) error {
	return &ConflictError{Err: err, State: state}
}

// StateOf extrai o estado anexado, se houver
func StateOf(err error) map[string]any {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.State
	}
	return nil
}
