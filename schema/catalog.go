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

// Package schema is the registry of record classes, their properties,
// inheritance and storage partitions.
//
// A Catalog is the live, lock-guarded schema that accepts changes. Readers
// normally work on an immutable Snapshot returned by Catalog.Snapshot, which
// needs no locking and stays valid after later changes.
package schema

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cayleygraph/catalog/auth"
	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

// Deps are the collaborators of a catalog. Only Records is required.
type Deps struct {
	Records store.RecordStore
	// Indexes is needed to declare indexes.
	Indexes store.IndexStore
	// Meta persists the schema definition after every change.
	Meta store.MetaStore
	// Gate defaults to auth.AllowAll.
	Gate auth.Gate
	// Migrator rewrites stored records after type and name changes.
	Migrator Migrator
	// Converter defaults to types.DefaultConverter.
	Converter *types.Converter
}

type Options struct {
	// DefaultPartitions is the number of partitions of a new class.
	DefaultPartitions int
	// Selection is the partition selection of new classes.
	Selection string
	// GraphRoots creates the V and E classes on a new catalog.
	GraphRoots bool
	// CreateRetries bounds partition allocation attempts of CreateClass.
	CreateRetries int
	// StrictReads checks read permissions in Catalog.Class.
	StrictReads bool
}

func DefaultOptions() Options {
	return Options{
		DefaultPartitions: 1,
		Selection:         SelectRoundRobin,
		GraphRoots:        true,
		CreateRetries:     3,
	}
}

func (o *Options) normalize() error {
	if o.DefaultPartitions <= 0 {
		o.DefaultPartitions = 1
	}
	if o.Selection == "" {
		o.Selection = SelectRoundRobin
	}
	if o.CreateRetries <= 0 {
		o.CreateRetries = 1
	}
	return checkSelection(o.Selection)
}

// Catalog is the live schema of a database.
type Catalog struct {
	deps Deps
	opts Options
	conv *types.Converter
	gate auth.Gate

	mu        sync.RWMutex
	classes   map[string]*class // by lower case name
	partOwner map[int32]*class
	blobs     map[int32]bool
	globals   *globalTable
	indexes   map[string]*index // by lower case name
	migrator  Migrator

	buildMu sync.Mutex
	snap    atomic.Pointer[Snapshot]

	lmu       sync.Mutex
	listeners []*listenerEntry
}

func newCatalog(deps Deps, opts Options) (*Catalog, error) {
	if deps.Records == nil {
		return nil, errors.New("schema: record store is required")
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	c := &Catalog{
		deps:      deps,
		opts:      opts,
		conv:      deps.Converter,
		gate:      deps.Gate,
		classes:   make(map[string]*class),
		partOwner: make(map[int32]*class),
		blobs:     make(map[int32]bool),
		globals:   newGlobalTable(),
		indexes:   make(map[string]*index),
		migrator:  deps.Migrator,
	}
	if c.conv == nil {
		c.conv = types.DefaultConverter
	}
	if c.gate == nil {
		c.gate = auth.AllowAll{}
	}
	return c, nil
}

// New creates an empty catalog. With Options.GraphRoots the V and E classes
// are created right away.
func New(ctx context.Context, deps Deps, opts Options) (*Catalog, error) {
	c, err := newCatalog(deps, opts)
	if err != nil {
		return nil, err
	}
	if c.opts.GraphRoots {
		c.mu.Lock()
		for _, name := range []string{VertexClass, EdgeClass} {
			if _, err = c.createClassLocked(ctx, &change{}, name, ClassOptions{}); err != nil {
				break
			}
		}
		if err == nil {
			err = c.persistLocked(ctx)
		}
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Open restores the catalog persisted in deps.Meta, or creates a new one.
func Open(ctx context.Context, deps Deps, opts Options) (*Catalog, error) {
	if deps.Meta == nil {
		return New(ctx, deps, opts)
	}
	data, err := deps.Meta.GetMeta(ctx, definitionKey)
	if errors.Is(err, store.ErrNotFound) {
		clog.Infof("schema: no stored definition, creating a new catalog")
		return New(ctx, deps, opts)
	} else if err != nil {
		return nil, err
	}
	def, err := UnmarshalDefinition(data)
	if err != nil {
		return nil, err
	}
	return Load(ctx, def, deps, opts)
}

// SetMigrator sets the collaborator that rewrites records after type and
// name changes.
func (c *Catalog) SetMigrator(m Migrator) {
	c.mu.Lock()
	c.migrator = m
	c.mu.Unlock()
}

// Converter returns the value converter of the catalog.
func (c *Catalog) Converter() *types.Converter { return c.conv }

// change collects what a schema change does besides mutating the catalog.
type change struct {
	events     []event
	migrations []migration
}

func (ch *change) emit(kind eventKind, class, prop string) {
	ch.events = append(ch.events, event{kind: kind, class: class, property: prop})
}

// write runs fn under the write lock. Changes are rejected inside a record
// transaction and must pass the authorization gate. Events and migrations
// collected by fn run after the lock is released.
func (c *Catalog) write(ctx context.Context, op string, res auth.Resource, perm auth.Permission, name string, fn func(ch *change) error) (err error) {
	defer func() {
		mOperations.WithLabelValues(op, result(err)).Inc()
	}()
	if store.InTransaction(ctx) {
		return markf(ErrIllegalState, "%s: cannot change the schema inside a transaction", op)
	}
	if err := c.gate.Check(ctx, res, perm, name); err != nil {
		return err
	}
	ch := &change{}
	c.mu.Lock()
	err = fn(ch)
	if err == nil {
		c.snap.Store(nil)
		if perr := c.persistLocked(ctx); perr != nil {
			clog.Errorf("schema: %s applied but not persisted: %v", op, perr)
			err = perr
		}
	}
	migrator := c.migrator
	c.mu.Unlock()
	if len(ch.events) == 0 && len(ch.migrations) == 0 {
		return err
	}
	c.fire(ctx, ch.events)
	for _, m := range ch.migrations {
		if merr := c.migrate(ctx, migrator, m); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

func (c *Catalog) persistLocked(ctx context.Context) error {
	if c.deps.Meta == nil {
		return nil
	}
	data, err := c.definitionLocked().Marshal()
	if err != nil {
		return err
	}
	return c.deps.Meta.PutMeta(ctx, definitionKey, data)
}

func (c *Catalog) classLocked(name string) (*class, error) {
	cl, ok := c.classes[lower(name)]
	if !ok {
		return nil, markf(ErrNotFound, "class %q not found", name)
	}
	return cl, nil
}

// ExistsClass reports if a class is defined. Names are case-insensitive.
func (c *Catalog) ExistsClass(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.classes[lower(name)]
	return ok
}

// PartitionOwner returns the name of the class owning a partition.
func (c *Catalog) PartitionOwner(pid int32) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.partOwner[pid]
	if !ok {
		return "", false
	}
	return cl.name, true
}

// PolymorphicPartitions returns the partitions of a class and of all its
// subclasses.
func (c *Catalog) PolymorphicPartitions(class string) ([]int32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, err := c.classLocked(class)
	if err != nil {
		return nil, err
	}
	return clonePartitions(cl.poly), nil
}

// Class returns the current version of a class, checking the read
// permission when the catalog runs with StrictReads.
func (c *Catalog) Class(ctx context.Context, name string) (*Class, error) {
	if c.opts.StrictReads {
		if err := c.gate.Check(ctx, auth.Class, auth.Read, name); err != nil {
			return nil, err
		}
	}
	cl := c.Snapshot().Class(name)
	if cl == nil {
		return nil, markf(ErrNotFound, "class %q not found", name)
	}
	return cl, nil
}

// Snapshot returns an immutable view of the current schema. It is built at
// most once per schema version.
func (c *Catalog) Snapshot() *Snapshot {
	if s := c.snap.Load(); s != nil {
		return s
	}
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if s := c.snap.Load(); s != nil {
		return s
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	timer := prometheus.NewTimer(mSnapshotBuildSeconds)
	s := c.buildSnapshot()
	timer.ObserveDuration()
	mSnapshotBuilds.Inc()
	// stored before releasing the read lock, so a writer cannot invalidate
	// the cache in between
	c.snap.Store(s)
	return s
}

// NewRecordPartition picks the partition for a new record of a class.
func (c *Catalog) NewRecordPartition(ctx context.Context, class string) (int32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, err := c.classLocked(class)
	if err != nil {
		return 0, err
	}
	return selectPartition(ctx, c.deps.Records, cl)
}

// Count returns the number of records of a class, including subclasses
// when polymorphic is set.
func (c *Catalog) Count(ctx context.Context, class string, polymorphic bool) (int64, error) {
	c.mu.RLock()
	cl, err := c.classLocked(class)
	var parts []int32
	if err == nil {
		parts = cl.parts
		if polymorphic {
			parts = cl.poly
		}
		parts = clonePartitions(parts)
	}
	c.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	return c.countPartitions(ctx, parts)
}

func (c *Catalog) countPartitions(ctx context.Context, parts []int32) (int64, error) {
	var total int64
	for _, pid := range parts {
		n, err := c.deps.Records.PartitionSize(ctx, pid)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// allocatePartitions allocates n partitions not owned by any class.
// Partitions already claimed by a class or used for blobs are skipped and
// retried a bounded number of times.
func (c *Catalog) allocatePartitions(ctx context.Context, n int) ([]int32, error) {
	out := make([]int32, 0, n)
	retries := 0
	for len(out) < n {
		pid, err := c.deps.Records.AllocatePartition(ctx)
		if err != nil {
			c.dropPartitions(ctx, out)
			return nil, err
		}
		owner, taken := c.partOwner[pid]
		if taken || c.blobs[pid] {
			retries++
			if taken {
				clog.Warningf("schema: allocated partition %d is owned by %q, retrying", pid, owner.name)
			} else {
				clog.Warningf("schema: allocated partition %d is a blob partition, retrying", pid)
			}
			if retries >= c.opts.CreateRetries {
				c.dropPartitions(ctx, out)
				return nil, markf(ErrIllegalState, "cannot allocate a free partition after %d attempts", retries)
			}
			continue
		}
		out = append(out, pid)
	}
	sortPartitions(out)
	return out, nil
}

func (c *Catalog) dropPartitions(ctx context.Context, parts []int32) {
	for _, pid := range parts {
		if err := c.deps.Records.DropPartition(ctx, pid); err != nil {
			clog.Errorf("schema: cannot drop partition %d: %v", pid, err)
		}
	}
}
