package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "karmaclaims",
		Name:      "generation_attempts_total",
		Help:      "Generation calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	retrievalDegradations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "karmaclaims",
		Name:      "retrieval_degradations_total",
		Help:      "Retrieval stages that fell back to their degraded result.",
	}, []string{"stage"})

	draftsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "karmaclaims",
		Name:      "drafts_generated_total",
		Help:      "Grievance notices assembled.",
	})

	triageTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "karmaclaims",
		Name:      "triage_turns_total",
		Help:      "Triage turns by resulting state.",
	}, []string{"state"})
)
