package migrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_migrate_records_scanned",
		Help: "Number of records scanned by migrations.",
	})
	mRewritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_migrate_records_rewritten",
		Help: "Number of records rewritten by migrations.",
	})
	mFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_migrate_records_failed",
		Help: "Number of records a migration could not rewrite.",
	})
)
