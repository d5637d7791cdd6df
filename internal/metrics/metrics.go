// Package metrics exposes prometheus counters for repository writes, searches
// and narration sessions. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "civicvoice"

type Metrics struct {
	registry *prometheus.Registry

	issuesCreated     prometheus.Counter
	commentsAdded     prometheus.Counter
	statusChanges     *prometheus.CounterVec
	profileEdits      prometheus.Counter
	searches          *prometheus.CounterVec
	searchHits        prometheus.Histogram
	narrationSessions *prometheus.CounterVec
	staleEvents       prometheus.Counter
	feedFailures      prometheus.Counter
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		issuesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "issues_created_total",
			Help: "Issues submitted.",
		}),
		commentsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "comments_added_total",
			Help: "Comments appended to issues.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "issue_status_changes_total",
			Help: "Issue status transitions by target status.",
		}, []string{"status"}),
		profileEdits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "profile_edits_total",
			Help: "Actor profile edits applied.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "searches_total",
			Help: "Searches executed by scope.",
		}, []string{"scope"}),
		searchHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_hits",
			Help:    "Result count per search.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		narrationSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "narration_sessions_total",
			Help: "Narration sessions by end reason.",
		}, []string{"reason"}),
		staleEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "narration_stale_events_total",
			Help: "Narration events discarded for an inactive session.",
		}),
		feedFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "feed_publish_failures_total",
			Help: "Change events the feed failed to publish.",
		}),
	}
	m.registry.MustRegister(
		m.issuesCreated,
		m.commentsAdded,
		m.statusChanges,
		m.profileEdits,
		m.searches,
		m.searchHits,
		m.narrationSessions,
		m.staleEvents,
		m.feedFailures,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IssueCreated() {
	if m == nil {
		return
	}
	m.issuesCreated.Inc()
}

func (m *Metrics) CommentAdded() {
	if m == nil {
		return
	}
	m.commentsAdded.Inc()
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) ProfileEdited() {
	if m == nil {
		return
	}
	m.profileEdits.Inc()
}

// SearchRun implements search.Observer.
func (m *Metrics) SearchRun(scope string, hits int) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(scope).Inc()
	m.searchHits.Observe(float64(hits))
}

// NarrationEnded implements narration.Observer.
func (m *Metrics) NarrationEnded(reason string) {
	if m == nil {
		return
	}
	m.narrationSessions.WithLabelValues(reason).Inc()
}

func (m *Metrics) StaleEventDiscarded() {
	if m == nil {
		return
	}
	m.staleEvents.Inc()
}

// FeedPublishFailed implements feed.Observer.
func (m *Metrics) FeedPublishFailed() {
	if m == nil {
		return
	}
	m.feedFailures.Inc()
}
