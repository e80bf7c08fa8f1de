package payout

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Precision é a quantidade de casas decimais usadas nos pagamentos
const Precision = 6

var hundred = decimal.NewFromInt(100)

// Percentages define a divisão do pool entre plataforma, lutador vencedor e apostadores
type Percentages struct {
	Platform int `json:"platform"`
	Winner   int `json:"winner"`
	Bettors  int `json:"bettors"`
}

var DefaultPercentages = Percentages{Platform: 10, Winner: 15, Bettors: 75}

func (p Percentages) Valid() bool {
	return p.Platform >= 0 && p.Winner >= 0 && p.Bettors >= 0 &&
		p.Platform+p.Winner+p.Bettors == 100
}

// Split é a divisão de um pool
type Split struct {
	Platform decimal.Decimal `json:"platformAmount"`
	Winner   decimal.Decimal `json:"winnerAmount"`
	Bettors  decimal.Decimal `json:"bettorsAmount"`
}

type Splitter struct {
	pct      Percentages
	fallback bool
}

// NewSplitter valida os percentuais. Se não somarem 100 volta para o default
// e registra um aviso; a liquidação nunca é bloqueada por configuração errada.
func NewSplitter(p Percentages, log *zap.Logger) *Splitter {
	if p.Valid() {
		return &Splitter{pct: p}
	}
	if log != nil {
		log.Warn("payout split misconfigured, falling back to default",
			zap.Int("platform", p.Platform),
			zap.Int("winner", p.Winner),
			zap.Int("bettors", p.Bettors),
			zap.Any("default", DefaultPercentages),
		)
	}
	return &Splitter{pct: DefaultPercentages, fallback: true}
}

func (s *Splitter) Percentages() Percentages { return s.pct }

// UsingFallback indica se a configuração recebida foi descartada
func (s *Splitter) UsingFallback() bool { return s.fallback }

// SplitPool divide o pool. A parte dos apostadores fica com o resto,
// então platform+winner+bettors == total exatamente.
func (s *Splitter) SplitPool(total decimal.Decimal) Split {
	if !total.IsPositive() {
		return Split{Platform: decimal.Zero, Winner: decimal.Zero, Bettors: decimal.Zero}
	}
	platform := share(total, s.pct.Platform)
	winner := share(total, s.pct.Winner)
	return Split{
		Platform: platform,
		Winner:   winner,
		Bettors:  total.Sub(platform).Sub(winner),
	}
}

func share(total decimal.Decimal, pct int) decimal.Decimal {
	return total.Mul(decimal.NewFromInt(int64(pct))).Div(hundred).RoundFloor(Precision)
}
