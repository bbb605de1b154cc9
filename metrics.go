package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics receives counters from the account components
type Metrics interface {
	TokenIssued(kind TokenKind)
	TokenConsumed(kind TokenKind)
	TokenRejected(kind TokenKind, reason string)
	LoginSucceeded()
	LoginFailed(reason string)
	SessionsOpened(n int)
	SessionsClosed(reason string, n int)
	SweepRemoved(entity string, n int)
}

type noopMetrics struct{}

func (noopMetrics) TokenIssued(TokenKind)           {}
func (noopMetrics) TokenConsumed(TokenKind)         {}
func (noopMetrics) TokenRejected(TokenKind, string) {}
func (noopMetrics) LoginSucceeded()                 {}
func (noopMetrics) LoginFailed(string)              {}
func (noopMetrics) SessionsOpened(int)              {}
func (noopMetrics) SessionsClosed(string, int)      {}
func (noopMetrics) SweepRemoved(string, int)        {}

func normalizeMetrics(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

// PrometheusMetrics exports account counters to a prometheus registry
type PrometheusMetrics struct {
	TokensIssued   *prometheus.CounterVec
	TokensConsumed *prometheus.CounterVec
	TokensRejected *prometheus.CounterVec
	Logins         *prometheus.CounterVec
	SessionsOpen   prometheus.Counter
	SessionsEnded  *prometheus.CounterVec
	Swept          *prometheus.CounterVec
}

var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the account counters on reg. A nil reg
// uses the default registerer.
func NewPrometheusMetrics(namespace string, reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "accounts"
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		TokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_issued_total",
				Help:      "Total number of single use tokens issued",
			},
			[]string{"kind"},
		),
		TokensConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_consumed_total",
				Help:      "Total number of single use tokens consumed",
			},
			[]string{"kind"},
		),
		TokensRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_rejected_total",
				Help:      "Total number of token checks that failed by reason",
			},
			[]string{"kind", "reason"},
		),
		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Total number of password logins by outcome",
			},
			[]string{"outcome"},
		),
		SessionsOpen: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_opened_total",
				Help:      "Total number of sessions opened",
			},
		),
		SessionsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_closed_total",
				Help:      "Total number of sessions deactivated by reason",
			},
			[]string{"reason"},
		),
		Swept: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_removed_total",
				Help:      "Total number of rows removed by maintenance sweeps",
			},
			[]string{"entity"},
		),
	}
}

func (p *PrometheusMetrics) TokenIssued(kind TokenKind) {
	p.TokensIssued.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusMetrics) TokenConsumed(kind TokenKind) {
	p.TokensConsumed.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusMetrics) TokenRejected(kind TokenKind, reason string) {
	p.TokensRejected.WithLabelValues(string(kind), reason).Inc()
}

func (p *PrometheusMetrics) LoginSucceeded() {
	p.Logins.WithLabelValues("success").Inc()
}

func (p *PrometheusMetrics) LoginFailed(reason string) {
	p.Logins.WithLabelValues(reason).Inc()
}

func (p *PrometheusMetrics) SessionsOpened(n int) {
	p.SessionsOpen.Add(float64(n))
}

func (p *PrometheusMetrics) SessionsClosed(reason string, n int) {
	if n <= 0 {
		return
	}
	p.SessionsEnded.WithLabelValues(reason).Add(float64(n))
}

func (p *PrometheusMetrics) SweepRemoved(entity string, n int) {
	if n <= 0 {
		return
	}
	p.Swept.WithLabelValues(entity).Add(float64(n))
}
