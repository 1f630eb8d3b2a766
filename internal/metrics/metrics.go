package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the posting pipeline's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	PostsTotal        *prometheus.CounterVec
	ModerationTotal   *prometheus.CounterVec
	GenerationTotal   *prometheus.CounterVec
	MediaUploadsTotal *prometheus.CounterVec
	BatchesTotal      prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PostsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ourstreet_social_posts_total",
				Help: "Posting workflow runs by outcome",
			},
			[]string{"outcome"},
		),
		ModerationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ourstreet_social_moderation_total",
				Help: "Moderation verdicts by verdict and source",
			},
			[]string{"verdict", "source"},
		),
		GenerationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ourstreet_social_generation_total",
				Help: "Generated post bodies by source",
			},
			[]string{"source"},
		),
		MediaUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ourstreet_social_media_uploads_total",
				Help: "Media upload attempts by outcome",
			},
			[]string{"outcome"},
		),
		BatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ourstreet_social_batches_total",
				Help: "Batch posting runs",
			},
		),
	}

	reg.MustRegister(m.PostsTotal, m.ModerationTotal, m.GenerationTotal, m.MediaUploadsTotal, m.BatchesTotal)
	return m
}

// ObservePost records a finished posting run
func (m *Metrics) ObservePost(success bool, reason string) {
	if m == nil {
		return
	}
	outcome := "posted"
	if !success {
		outcome = reason
	}
	m.PostsTotal.WithLabelValues(outcome).Inc()
}

// ObserveModeration records a moderation verdict
func (m *Metrics) ObserveModeration(approved bool, source string) {
	if m == nil {
		return
	}
	verdict := "approve"
	if !approved {
		verdict = "reject"
	}
	m.ModerationTotal.WithLabelValues(verdict, source).Inc()
}

// ObserveGeneration records which path produced the post text
func (m *Metrics) ObserveGeneration(source string) {
	if m == nil {
		return
	}
	m.GenerationTotal.WithLabelValues(source).Inc()
}

// ObserveMediaUpload records a media stage outcome
func (m *Metrics) ObserveMediaUpload(outcome string) {
	if m == nil {
		return
	}
	m.MediaUploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBatch records a batch run
func (m *Metrics) ObserveBatch() {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
}
