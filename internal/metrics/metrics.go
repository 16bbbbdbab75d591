// Package metrics holds the Prometheus collectors updated by the analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesTotal counts processed source files by outcome (parsed, failed).
	FilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archmap_files_total",
		Help: "Source files processed, by outcome",
	}, []string{"outcome"})

	ElementsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archmap_elements_extracted_total",
		Help: "Code elements emitted by the extractor",
	})

	// RelationshipsResolved counts resolved relationships by kind.
	RelationshipsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archmap_relationships_resolved_total",
		Help: "Relationships emitted by the resolver, by kind",
	}, []string{"kind"})

	ReferencesUnresolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archmap_references_unresolved_total",
		Help: "References that could not be linked to a known element",
	})

	CycleOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archmap_cycle_overruns_total",
		Help: "Elementary cycle searches abandoned after hitting a guard",
	})

	// StageDuration observes pipeline stage latency in seconds.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "archmap_stage_duration_seconds",
		Help:    "Duration of analysis pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})
)

// WriteTextfile dumps the default registry in the Prometheus text format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
