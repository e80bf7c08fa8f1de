package settlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Payout é um crédito a ser feito on-chain
type Payout struct {
	BetID  string          `json:"betId,omitempty"`
	Wallet string          `json:"wallet"`
	Amount decimal.Decimal `json:"amount"`
}

// Request descreve a liquidação de uma partida para o cliente da chain.
// A assinatura e o envio da transação ficam fora deste serviço.
type Request struct {
	MatchID       string          `json:"matchId"`
	WinnerID      string          `json:"winnerId,omitempty"`
	Draw          bool            `json:"draw"`
	TotalPool     decimal.Decimal `json:"totalPool"`
	WinnerCredit  decimal.Decimal `json:"winnerCredit"`
	PlatformCarry decimal.Decimal `json:"platformCarry"`
	Payouts       []Payout        `json:"payouts"`
	TsUnixMs      int64           `json:"ts_unix_ms"`
}

// Settler envia o pedido de liquidação. Falhas não são refeitas pelo chamador.
type Settler interface {
	Settle(ctx context.Context, r Request) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSettler publica o pedido no tópico chain_settlement
type KafkaSettler struct {
	Writer messageWriter
}

func NewKafkaSettler(w *kafka.Writer) *KafkaSettler {
	return &KafkaSettler{Writer: w}
}

func (s *KafkaSettler) Settle(ctx context.Context, r Request) error {
	if r.TsUnixMs == 0 {
		r.TsUnixMs = time.Now().UnixMilli()
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(r.MatchID), Value: b})
}

// Nop descarta os pedidos (modo local sem chain)
type Nop struct{}

func (Nop) Settle(context.Context, Request) error { return nil }
