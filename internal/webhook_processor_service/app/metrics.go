package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statusUpdatesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook_processor",
			Name:      "status_updates_total",
			Help:      "Total provider status callbacks processed, by status and outcome.",
		},
		[]string{"status", "outcome"}, // outcome: applied, duplicate, unknown_message, error
	)
	responsesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook_processor",
			Name:      "responses_total",
			Help:      "Total inbound responses processed, by type.",
		},
		[]string{"type"},
	)
	eventsConsumedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook_processor",
			Name:      "events_consumed_total",
			Help:      "Total raw webhook events consumed from the bus, by outcome.",
		},
		[]string{"outcome"}, // processed, undecodable
	)
)
