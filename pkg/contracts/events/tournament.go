package events

type TournamentPayload struct {
	TournamentID string   `json:"tournamentId"`
	Round        int      `json:"round"`
	Participants []string `json:"participants"`
	MatchIDs     []string `json:"matchIds,omitempty"`
	ChampionID   string   `json:"championId,omitempty"`
}
