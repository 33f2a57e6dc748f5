package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	PackageLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkgraph_package_load_seconds",
		Help:    "Time spent compiling and classifying one package.",
		Buckets: prometheus.DefBuckets,
	}, []string{"package"})

	ObjectsClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkgraph_objects_classified_total",
		Help: "Total number of object files whose symbol tables were read.",
	}, []string{"format"})

	EmptySymbolTablesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkgraph_empty_symbol_tables_total",
		Help: "Total number of objects that contributed no symbols.",
	})

	DuplicateDefinersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkgraph_duplicate_definers_total",
		Help: "Total number of exported symbols already defined by an earlier object.",
	})

	IndexSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "linkgraph_index_symbols",
		Help: "Number of exported symbols in the most recent build index.",
	})

	IndexObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "linkgraph_index_objects",
		Help: "Number of object files in the most recent build index.",
	})

	ClosureSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkgraph_closure_objects",
		Help:    "Number of dependency objects in a resolved link closure.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	ToolchainCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkgraph_toolchain_commands_total",
		Help: "Total number of external toolchain commands, by step and outcome.",
	}, []string{"step", "outcome"})

	ToolchainDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkgraph_toolchain_seconds",
		Help:    "Time spent in external toolchain commands.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkgraph_build_seconds",
		Help:    "Wall time of a whole build run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	BinariesLinkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkgraph_binaries_linked_total",
		Help: "Total number of executables produced.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkgraph_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
