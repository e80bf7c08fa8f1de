package publisher

import (
	"context"
	"errors"

	"github.com/radieske/agent-arena/pkg/contracts/events"
)

// Publisher entrega envelopes da arena para algum transporte
type Publisher interface {
	Publish(ctx context.Context, e events.Envelope) error
}

// Fanout replica o envelope para todos os publishers e junta os erros
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e events.Envelope) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, events.Envelope) error { return nil }
