package voting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts ballot and lifecycle activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	votesCast       prometheus.Counter
	ballots         *prometheus.CounterVec
	itemRejections  *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	electionsOpened prometheus.Counter
}

func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	promautoFactory := promauto.With(promRegistry)
	return &Metrics{
		votesCast: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "campusvote_votes_cast_total",
			Help: "total number of vote rows written",
		}),
		ballots: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusvote_ballots_total",
			Help: "ballot submissions by outcome",
		}, []string{"outcome"}),
		itemRejections: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusvote_ballot_item_rejections_total",
			Help: "rejected ballot items by issue code",
		}, []string{"code"}),
		transitions: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusvote_election_transitions_total",
			Help: "successful election lifecycle transitions by action",
		}, []string{"action"}),
		electionsOpened: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "campusvote_elections_created_total",
			Help: "total number of elections created",
		}),
	}
}

func (m *Metrics) ballotAccepted(votes int) {
	if m == nil {
		return
	}
	m.ballots.WithLabelValues("accepted").Inc()
	m.votesCast.Add(float64(votes))
}

func (m *Metrics) ballotRejected(codes []string) {
	if m == nil {
		return
	}
	m.ballots.WithLabelValues("rejected").Inc()
	for _, code := range codes {
		m.itemRejections.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) ballotConflicted() {
	if m == nil {
		return
	}
	m.ballots.WithLabelValues("conflict").Inc()
}

func (m *Metrics) transition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

func (m *Metrics) electionCreated() {
	if m == nil {
		return
	}
	m.electionsOpened.Inc()
}
