package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/pkg/contracts/events"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Repo interface {
	SaveMatch(ctx context.Context, p events.MatchEndedPayload) error
}

// Processor consome match_ended do Kafka e arquiva no Postgres.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   Repo
	DLQ    MessageWriter // opcional

	Retries int
	Backoff time.Duration

	OnConsumed func()
	OnPersist  func()
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal; retorna quando o contexto é cancelado
func (p *Processor) Run(ctx context.Context) error {
	if p.Retries <= 0 {
		p.Retries = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 300 * time.Millisecond
	}
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(p.Backoff)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		var ev events.MatchEndedPayload
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.MatchID == "" {
			p.Log.Warn("invalid match_ended message", zap.Error(err))
			p.fail("decode")
			continue
		}

		if err := p.persist(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Error("archive match failed", zap.String("match_id", ev.MatchID), zap.Error(err))
			p.fail("db")
			if p.DLQ != nil {
				if err := p.DLQ.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value}); err != nil {
					p.Log.Warn("dlq write failed", zap.String("match_id", ev.MatchID), zap.Error(err))
					p.fail("dlq")
				}
			}
			continue
		}
		if p.OnPersist != nil {
			p.OnPersist()
		}
	}
}

// persist tenta algumas vezes com backoff crescente antes de desistir
func (p *Processor) persist(ctx context.Context, ev events.MatchEndedPayload) error {
	var err error
	for i := 0; i < p.Retries; i++ {
		if err = p.Repo.SaveMatch(ctx, ev); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * p.Backoff):
		}
	}
	return err
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
