// Package metrics exposes the assistant's Prometheus instruments. The forced
// completion paths (iteration bound, repeat detection) are successful outcomes
// and are counted here rather than surfaced as errors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_runs_started_total",
		Help: "Conversation runs accepted by the supervisor.",
	})

	RunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_runs_failed_total",
		Help: "Conversation runs that ended in a run-level failure.",
	})

	WorkerDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_worker_dispatches_total",
		Help: "Worker invocations, by worker name.",
	}, []string{"worker"})

	IterationBoundHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_iteration_bound_total",
		Help: "Runs forced to FINISH by the iteration ceiling.",
	})

	RepeatFinishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_repeat_finish_total",
		Help: "Runs forced to FINISH by the consecutive-decision repeat check.",
	})

	HL7MessagesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_hl7_messages_ingested_total",
		Help: "HL7 messages parsed and stored by the ingest pipeline.",
	})
)
