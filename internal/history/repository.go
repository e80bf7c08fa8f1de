package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/radieske/agent-arena/pkg/contracts/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_history (
	match_id        TEXT PRIMARY KEY,
	agent1_id       TEXT NOT NULL,
	agent2_id       TEXT NOT NULL,
	winner_id       TEXT,
	loser_id        TEXT,
	draw            BOOLEAN NOT NULL DEFAULT FALSE,
	reason          TEXT NOT NULL,
	final_hp1       INT NOT NULL,
	final_hp2       INT NOT NULL,
	rounds          INT NOT NULL,
	mode            TEXT NOT NULL,
	tournament_id   TEXT,
	total_pool      NUMERIC(20,6) NOT NULL,
	platform_amount NUMERIC(20,6) NOT NULL,
	winner_amount   NUMERIC(20,6) NOT NULL,
	bettors_amount  NUMERIC(20,6) NOT NULL,
	unallocated     NUMERIC(20,6) NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	ended_at        TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS bet_settlements (
	bet_id    TEXT PRIMARY KEY,
	match_id  TEXT NOT NULL REFERENCES match_history(match_id),
	agent_id  TEXT NOT NULL,
	wallet    TEXT NOT NULL,
	amount    NUMERIC(20,6) NOT NULL,
	status    TEXT NOT NULL,
	payout    NUMERIC(20,6) NOT NULL
);
CREATE INDEX IF NOT EXISTS bet_settlements_wallet_idx ON bet_settlements (wallet);
`

// PostgresRepo arquiva partidas encerradas e o resultado de cada ticket
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// EnsureSchema cria as tabelas se ainda não existirem
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveMatch grava a partida e os tickets numa transação. Reentregas do Kafka
// caem no ON CONFLICT e não duplicam linhas.
func (r *PostgresRepo) SaveMatch(ctx context.Context, p events.MatchEndedPayload) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const qMatch = `
		INSERT INTO match_history
		  (match_id, agent1_id, agent2_id, winner_id, loser_id, draw, reason, final_hp1, final_hp2,
		   rounds, mode, tournament_id, total_pool, platform_amount, winner_amount, bettors_amount,
		   unallocated, started_at, ended_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (match_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, qMatch,
		p.MatchID, p.Agent1ID, p.Agent2ID, nullable(p.WinnerID), nullable(p.LoserID), p.Draw, p.Reason,
		p.FinalHP1, p.FinalHP2, p.Rounds, p.Mode, nullable(p.TournamentID),
		p.TotalPool, p.PlatformCarry, p.WinnerAmount, p.BettorsAmount, p.Unallocated,
		time.UnixMilli(p.StartedAtMs).UTC(), time.UnixMilli(p.EndedAtMs).UTC(),
	); err != nil {
		return fmt.Errorf("insert match_history: %w", err)
	}

	const qBet = `
		INSERT INTO bet_settlements (bet_id, match_id, agent_id, wallet, amount, status, payout)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (bet_id) DO NOTHING
	`
	for _, b := range p.Bets {
		if _, err := tx.ExecContext(ctx, qBet, b.BetID, p.MatchID, b.AgentID, b.Wallet, b.Amount, b.Status, b.Payout); err != nil {
			return fmt.Errorf("insert bet_settlement %s: %w", b.BetID, err)
		}
	}
	return tx.Commit()
}
