package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/agent-arena/pkg/contracts/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher escreve todos os envelopes em arena_events
// e, quando Ended está configurado, duplica match_ended no tópico do history-worker
type KafkaPublisher struct {
	Writer messageWriter
	Ended  messageWriter
}

func NewKafkaPublisher(w, ended *kafka.Writer) *KafkaPublisher {
	p := &KafkaPublisher{Writer: w}
	if ended != nil {
		p.Ended = ended
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, e events.Envelope) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(e.Key()), Value: b, Time: time.Now()}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	if e.Type == events.MatchEnded && p.Ended != nil {
		// o consumidor do histórico só precisa do payload
		return p.Ended.WriteMessages(ctx, kafka.Message{Key: []byte(e.MatchID), Value: e.Payload, Time: msg.Time})
	}
	return nil
}
