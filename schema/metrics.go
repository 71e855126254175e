package schema

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_schema_operations",
		Help: "Number of schema changes by operation and result.",
	}, []string{"op", "result"})

	mSnapshotBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_schema_snapshot_builds",
		Help: "Number of schema snapshots built.",
	})
	mSnapshotBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "catalog_schema_snapshot_build_seconds",
		Help: "Time to build a schema snapshot.",
	})

	mIndexExclusions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_schema_index_exclusions",
		Help: "Number of partitions left out of an index after a failed registration.",
	})

	mMigrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_schema_migrations",
		Help: "Number of record migrations started by schema changes.",
	}, []string{"kind"})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
