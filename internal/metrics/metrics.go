package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los contadores del servicio sobre un registry propio.
type Metrics struct {
	registry     *prometheus.Registry
	signups      *prometheus.CounterVec
	logins       *prometheus.CounterVec
	mailDispatch *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diaspora",
			Name:      "signups_total",
			Help:      "Signup attempts by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diaspora",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		mailDispatch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diaspora",
			Name:      "mail_dispatch_seconds",
			Help:      "Verification mail dispatch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.signups,
		m.logins,
		m.mailDispatch,
		collectors.NewGoCollector(),
	)
	return m
}

// Signup registra el desenlace de un signup. Seguro con receptor nil.
func (m *Metrics) Signup(outcome string) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(outcome).Inc()
}

// Login registra el desenlace de un login. Seguro con receptor nil.
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// MailDispatch registra la latencia de un envio. Seguro con receptor nil.
func (m *Metrics) MailDispatch(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.mailDispatch.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
