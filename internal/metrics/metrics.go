package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "duplex_store_active_rooms",
		Help: "Number of room records currently stored",
	})
	ActiveWatchers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "duplex_store_active_watchers",
		Help: "Number of open WebSocket watch streams by kind",
	}, []string{"kind"})
)

// Counters
var (
	RoomsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplex_store_rooms_created_total",
		Help: "Total room records created",
	})
	RoomsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplex_store_rooms_rejected_total",
		Help: "Room creations refused by the per-client rate limit",
	})
	AnswersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duplex_store_answers_total",
		Help: "Answer writes by outcome",
	}, []string{"outcome"})
	CandidatesAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duplex_store_candidates_appended_total",
		Help: "Total candidate records appended by queue",
	}, []string{"queue"})
	WatchDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplex_store_watch_dropped_total",
		Help: "Watch streams closed because the client fell behind",
	})
)
