package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics agrupa os coletores da arena. Um *Metrics nil é válido e não registra nada.
type Metrics struct {
	MatchesStarted     prometheus.Counter
	MatchesCompleted   *prometheus.CounterVec // reason
	Actions            *prometheus.CounterVec // outcome
	BetsAccepted       prometheus.Counter
	BetsRejected       *prometheus.CounterVec // reason
	QueueDepth         prometheus.Gauge
	LiveMatches        prometheus.Gauge
	SettlementFailures prometheus.Counter
	SideEffectErrors   *prometheus.CounterVec // stage
	Unallocated        prometheus.Counter
}

// New cria e registra os coletores no registerer informado
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MatchesStarted:     prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_matches_started_total", Help: "partidas iniciadas"}),
		MatchesCompleted:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "arena_matches_completed_total", Help: "partidas encerradas por motivo"}, []string{"reason"}),
		Actions:            prometheus.NewCounterVec(prometheus.CounterOpts{Name: "arena_actions_total", Help: "ações resolvidas por resultado"}, []string{"outcome"}),
		BetsAccepted:       prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_bets_accepted_total", Help: "apostas aceitas"}),
		BetsRejected:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "arena_bets_rejected_total", Help: "apostas rejeitadas por motivo"}, []string{"reason"}),
		QueueDepth:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "arena_queue_depth", Help: "agentes aguardando na fila"}),
		LiveMatches:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "arena_live_matches", Help: "partidas ao vivo"}),
		SettlementFailures: prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_chain_settlement_failures_total", Help: "falhas no envio da liquidação on-chain"}),
		SideEffectErrors:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "arena_side_effect_errors_total", Help: "erros em efeitos assíncronos por estágio"}, []string{"stage"}),
		Unallocated:        prometheus.NewCounter(prometheus.CounterOpts{Name: "arena_unallocated_residual_total", Help: "resíduo de arredondamento enviado à plataforma"}),
	}
	if reg != nil {
		reg.MustRegister(m.MatchesStarted, m.MatchesCompleted, m.Actions, m.BetsAccepted, m.BetsRejected,
			m.QueueDepth, m.LiveMatches, m.SettlementFailures, m.SideEffectErrors, m.Unallocated)
	}
	return m
}

func (m *Metrics) MatchStarted() {
	if m == nil {
		return
	}
	m.MatchesStarted.Inc()
	m.LiveMatches.Inc()
}

func (m *Metrics) MatchCompleted(reason string) {
	if m == nil {
		return
	}
	m.MatchesCompleted.WithLabelValues(reason).Inc()
	m.LiveMatches.Dec()
}

func (m *Metrics) Action(outcome string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BetAccepted() {
	if m == nil {
		return
	}
	m.BetsAccepted.Inc()
}

func (m *Metrics) BetRejected(reason string) {
	if m == nil {
		return
	}
	m.BetsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) SettlementFailed() {
	if m == nil {
		return
	}
	m.SettlementFailures.Inc()
}

func (m *Metrics) SideEffectError(stage string) {
	if m == nil {
		return
	}
	m.SideEffectErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) AddUnallocated(v float64) {
	if m == nil || v <= 0 {
		return
	}
	m.Unallocated.Add(v)
}
