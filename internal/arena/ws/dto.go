package ws

// ClientMsg é a mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// MatchID: "*" assina todas as partidas e os eventos de torneio
type ClientMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
}

const AllMatches = "*"
