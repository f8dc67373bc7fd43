package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesDispatchedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campaign_sending",
			Name:      "messages_dispatched_total",
			Help:      "Total template messages dispatched to the provider, by outcome.",
		},
		[]string{"outcome"}, // sent, failed, skipped
	)
	campaignRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campaign_sending",
			Name:      "campaign_runs_total",
			Help:      "Total campaign send loop runs, by outcome.",
		},
		[]string{"outcome"}, // completed, failed, skipped
	)
	dispatchDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "campaign_sending",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of one provider dispatch call.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
