package topics

const (
	// Eventos da arena (start, tick, ação, aposta, fim, torneio)
	ArenaEvents = "arena_events"

	// Fim de partida, consumido pelo history-worker
	MatchEnded = "match_ended"

	// Pedidos de liquidação on-chain, consumidos pelo cliente da chain
	ChainSettlement = "chain_settlement"

	// DLQs
	MatchEndedDLQ = "match_ended_dlq"
)
