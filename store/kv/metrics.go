package kv

import (
	"context"

	hkv "github.com/hidal-go/hidalgo/kv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mRecordsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_records_saved",
		Help: "Number of records written.",
	})
	mRecordsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_records_deleted",
		Help: "Number of records deleted.",
	})
	mRecordSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "catalog_kv_record_size_bytes",
		Help: "Size of an encoded record.",
	})

	mRecordCacheHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_record_cache_hits",
		Help: "Number of record loads served from the cache.",
	})
	mRecordCacheMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_record_cache_miss",
		Help: "Number of record loads that went to KV.",
	})

	mRecordsBloomHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_records_bloom_hits",
		Help: "Number of times the record bloom filter returned a negative result.",
	})
	mRecordsBloomMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_records_bloom_miss",
		Help: "Number of times the record bloom filter returned a positive result.",
	})

	mIndexEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_kv_index_entries_written",
		Help: "Number of index entries written.",
	}, []string{"index"})

	mKVGet = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_get_count",
		Help: "Number of get KV calls.",
	})
	mKVGetMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_get_miss",
		Help: "Number of get KV calls that found no value.",
	})
	mKVGetSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "catalog_kv_get_size",
		Help: "Size of values returned from KV.",
	})
	mKVPut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_put_count",
		Help: "Number of put KV calls.",
	})
	mKVPutSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "catalog_kv_put_size",
		Help: "Size of values put to KV.",
	})
	mKVDel = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_del_count",
		Help: "Number of del KV calls.",
	})
	mKVScan = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_scan_count",
		Help: "Number of scan KV calls.",
	})
	mKVCommit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_commit",
		Help: "Number of KV commits.",
	})
	mKVCommitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "catalog_kv_commit_seconds",
		Help: "Time to commit to KV.",
	})
	mKVRollback = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_kv_rollback",
		Help: "Number of KV rollbacks.",
	})
)

func wrapTx(tx hkv.Tx) hkv.Tx {
	return &mTx{tx: tx}
}

type mTx struct {
	tx   hkv.Tx
	done bool
}

func (tx *mTx) Commit(ctx context.Context) error {
	if !tx.done {
		tx.done = true
		mKVCommit.Inc()
		defer prometheus.NewTimer(mKVCommitSeconds).ObserveDuration()
	}
	return tx.tx.Commit(ctx)
}

func (tx *mTx) Close() error {
	if !tx.done {
		tx.done = true
		mKVRollback.Inc()
	}
	return tx.tx.Close()
}

func (tx *mTx) Get(ctx context.Context, key hkv.Key) (hkv.Value, error) {
	mKVGet.Inc()
	val, err := tx.tx.Get(ctx, key)
	if err == hkv.ErrNotFound {
		mKVGetMiss.Inc()
	} else if err == nil {
		mKVGetSize.Observe(float64(len(val)))
	}
	return val, err
}

func (tx *mTx) GetBatch(ctx context.Context, keys []hkv.Key) ([]hkv.Value, error) {
	mKVGet.Add(float64(len(keys)))
	vals, err := tx.tx.GetBatch(ctx, keys)
	for _, v := range vals {
		if v == nil {
			mKVGetMiss.Inc()
		} else {
			mKVGetSize.Observe(float64(len(v)))
		}
	}
	return vals, err
}

func (tx *mTx) Put(k hkv.Key, v hkv.Value) error {
	mKVPut.Inc()
	mKVPutSize.Observe(float64(len(v)))
	return tx.tx.Put(k, v)
}

func (tx *mTx) Del(k hkv.Key) error {
	mKVDel.Inc()
	return tx.tx.Del(k)
}

func (tx *mTx) Scan(pref hkv.Key) hkv.Iterator {
	mKVScan.Inc()
	return tx.tx.Scan(pref)
}
