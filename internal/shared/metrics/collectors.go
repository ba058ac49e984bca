package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups every counter the poll loops and the wagering engine report.
// Components receive the callbacks they need instead of the prometheus types.
type Collectors struct {
	MatchesReplicated    prometheus.Counter
	MatchesIncomplete    prometheus.Counter
	PointEventsProcessed prometheus.Counter
	PointsAwarded        prometheus.Counter
	BetsPlaced           prometheus.Counter
	BetsSettled          *prometheus.CounterVec // outcome: won|lost|refunded
	SettlementAnomalies  prometheus.Counter
	LiveState            *prometheus.GaugeVec // state
	ErrorsByStage        *prometheus.CounterVec
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		MatchesReplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inhouse_matches_replicated_total", Help: "completed matches copied from the upstream source",
		}),
		MatchesIncomplete: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inhouse_matches_incomplete_total", Help: "upstream matches skipped by the completion check",
		}),
		PointEventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inhouse_point_events_processed_total", Help: "matches whose awards were committed",
		}),
		PointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inhouse_points_awarded_total", Help: "points credited by match awards",
		}),
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inhouse_bets_placed_total", Help: "bets accepted with escrowed stake",
		}),
		BetsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inhouse_bets_settled_total", Help: "bets resolved by outcome",
		}, []string{"outcome"}),
		SettlementAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inhouse_settlement_anomalies_total", Help: "bets found already settled inside a settlement",
		}),
		LiveState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inhouse_live_match_state", Help: "1 for the current live tracker state",
		}, []string{"state"}),
		ErrorsByStage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inhouse_errors_total", Help: "errors by stage",
		}, []string{"stage"}),
	}
	reg.MustRegister(
		c.MatchesReplicated, c.MatchesIncomplete, c.PointEventsProcessed, c.PointsAwarded,
		c.BetsPlaced, c.BetsSettled, c.SettlementAnomalies, c.LiveState, c.ErrorsByStage,
	)
	return c
}

// OnError returns a stage-bound error callback
func (c *Collectors) OnError(stage string) func() {
	return func() { c.ErrorsByStage.WithLabelValues(stage).Inc() }
}

// SetLiveState marks state as the only active live tracker state
func (c *Collectors) SetLiveState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		c.LiveState.WithLabelValues(s).Set(v)
	}
}
