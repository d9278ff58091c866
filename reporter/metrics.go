package reporter

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the reporter's self-observability counters. They are always
// live; registration with an external registry only happens when the Config
// supplies a Registerer.
type metrics struct {
	itemsSubmitted prometheus.Counter
	itemsSent      prometheus.Counter
	itemsDropped   prometheus.Counter
	batchesSent    prometheus.Counter
	retryAttempts  prometheus.Counter
	fallbackRuns   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evalrelay",
			Subsystem: "reporter",
			Name:      name,
			Help:      help,
		})
	}

	m := &metrics{
		itemsSubmitted: counter("items_submitted_total", "Telemetry items accepted by ReportItem."),
		itemsSent:      counter("items_sent_total", "Telemetry items delivered to the collector."),
		itemsDropped:   counter("items_dropped_total", "Telemetry items abandoned after rejection or retry exhaustion."),
		batchesSent:    counter("batches_sent_total", "Append-items requests issued (one per run per batch)."),
		retryAttempts:  counter("retry_attempts_total", "Transport retries across all requests."),
		fallbackRuns:   counter("fallback_runs_total", "Runs started with a locally synthesized handle."),
	}

	if reg != nil {
		// Several reporters may share one registry; the second registration
		// of a counter adopts the first one's collector so totals aggregate
		// across reporters instead of panicking.
		for _, c := range []*prometheus.Counter{
			&m.itemsSubmitted, &m.itemsSent, &m.itemsDropped,
			&m.batchesSent, &m.retryAttempts, &m.fallbackRuns,
		} {
			if err := reg.Register(*c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
				*c = are.ExistingCollector.(prometheus.Counter)
			}
		}
	}
	return m
}
