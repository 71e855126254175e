// Copyright 2024 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package migrate rewrites stored records after a schema change.
package migrate

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/store"
)

const (
	DefaultBatchSize   = 1000
	DefaultParallelism = 4
)

// Partitioner resolves a class to the partitions holding its records and
// the records of its subclasses.
type Partitioner interface {
	PolymorphicPartitions(class string) ([]int32, error)
}

// Runner scans the partitions of a class and saves the records a rewrite
// function changed. Partitions are processed concurrently.
type Runner struct {
	Store      store.RecordStore
	Partitions Partitioner

	BatchSize   int
	Parallelism int
	// Timeout bounds a whole run. Zero means no limit.
	Timeout time.Duration
}

// Stats are the counters of one run.
type Stats struct {
	Scanned   int64
	Rewritten int64
	Failed    int64
}

func (r *Runner) batchSize() int {
	if r.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return r.BatchSize
}

func (r *Runner) parallelism() int {
	if r.Parallelism <= 0 {
		return DefaultParallelism
	}
	return r.Parallelism
}

// RewriteMatching implements the record migration hook of a schema catalog.
func (r *Runner) RewriteMatching(ctx context.Context, class string, match func(*store.Record) bool, rewrite func(*store.Record) error) error {
	st, err := r.Run(ctx, class, match, rewrite)
	if err != nil {
		return err
	}
	if st.Failed != 0 {
		clog.Warningf("migrate: %d records of class %q were not rewritten", st.Failed, class)
	}
	return nil
}

// Run rewrites every record of class that matches. A record whose rewrite
// fails is counted and left unchanged; the run goes on. Running it again
// only touches records that still match.
func (r *Runner) Run(ctx context.Context, class string, match func(*store.Record) bool, rewrite func(*store.Record) error) (Stats, error) {
	if r.Store == nil || r.Partitions == nil {
		return Stats{}, errors.New("migrate: runner is not configured")
	}
	parts, err := r.Partitions.PolymorphicPartitions(class)
	if err != nil {
		return Stats{}, err
	}
	if r.Timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	var st stats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism())
	for _, pid := range parts {
		pid := pid
		g.Go(func() error {
			return r.partition(gctx, pid, match, rewrite, &st)
		})
	}
	err = g.Wait()
	out := st.snapshot()
	if clog.V(1) {
		clog.Infof("migrate: class %q: scanned %d, rewritten %d, failed %d", class, out.Scanned, out.Rewritten, out.Failed)
	}
	return out, err
}

type stats struct {
	scanned, rewritten, failed atomic.Int64
}

func (s *stats) snapshot() Stats {
	return Stats{Scanned: s.scanned.Load(), Rewritten: s.rewritten.Load(), Failed: s.failed.Load()}
}

// partition collects matching records in batches and rewrites each batch
// once the scan of it is done, so no iterator is open while saving.
func (r *Runner) partition(ctx context.Context, pid int32, match func(*store.Record) bool, rewrite func(*store.Record) error, st *stats) error {
	size := r.batchSize()
	batch := make([]*store.Record, 0, size)
	err := store.Each(ctx, r.Store, pid, func(rec *store.Record) error {
		st.scanned.Add(1)
		mScanned.Inc()
		if !match(rec) {
			return nil
		}
		batch = append(batch, rec.Clone())
		if len(batch) < size {
			return nil
		}
		err := r.flush(ctx, batch, rewrite, st)
		batch = batch[:0]
		return err
	})
	if errors.Is(err, store.ErrPartitionNotFound) {
		// dropped while the migration was queued
		return nil
	} else if err != nil {
		return errors.Wrapf(err, "migrate: partition %d", pid)
	}
	return r.flush(ctx, batch, rewrite, st)
}

func (r *Runner) flush(ctx context.Context, batch []*store.Record, rewrite func(*store.Record) error, st *stats) error {
	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := rec.ID
		if err := rewrite(rec); err != nil {
			st.failed.Add(1)
			mFailed.Inc()
			clog.Warningf("migrate: cannot rewrite record %v: %v", id, err)
			continue
		}
		if _, err := r.Store.Save(ctx, rec); err != nil {
			if errors.Is(err, store.ErrUniqueViolation) {
				st.failed.Add(1)
				mFailed.Inc()
				clog.Warningf("migrate: cannot save record %v: %v", id, err)
				continue
			}
			return errors.Wrapf(err, "migrate: save %v", id)
		}
		st.rewritten.Add(1)
		mRewritten.Inc()
	}
	return nil
}
