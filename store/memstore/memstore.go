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

// Package memstore is a volatile storage backend keeping records of each
// partition in a B-tree ordered by position.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"

	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

const Type = "memstore"

func init() {
	store.Register(Type, store.Registration{
		NewFunc: func(string, store.Options) (store.Backend, error) {
			return New(), nil
		},
		IsPersistent: false,
	})
}

const treeDegree = 32

type item struct {
	pos int64
	rec *store.Record
}

func (a item) Less(b btree.Item) bool { return a.pos < b.(item).pos }

type partition struct {
	tree    *btree.BTree
	next    int64
	indexes map[string]struct{}
}

type index struct {
	def     store.IndexDefinition
	parts   map[int32]struct{}
	entries map[string][]types.RecordID
}

func (ind *index) add(key []byte, id types.RecordID) {
	ind.entries[string(key)] = append(ind.entries[string(key)], id)
}

func (ind *index) remove(key []byte, id types.RecordID) {
	ids := ind.entries[string(key)]
	for i, o := range ids {
		if o == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(ind.entries, string(key))
	} else {
		ind.entries[string(key)] = ids
	}
}

// conflict reports if a unique index already maps key to another record.
func (ind *index) conflict(key []byte, id types.RecordID) bool {
	if ind.def.Type != store.Unique {
		return false
	}
	for _, o := range ind.entries[string(key)] {
		if o != id {
			return true
		}
	}
	return false
}

var _ store.Backend = (*Store)(nil)

// Store keeps everything in memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	nextPart int32
	parts    map[int32]*partition
	indexes  map[string]*index
	meta     map[string][]byte
}

func New() *Store {
	return &Store{
		parts:   make(map[int32]*partition),
		indexes: make(map[string]*index),
		meta:    make(map[string][]byte),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) partition(pid int32) (*partition, error) {
	p, ok := s.parts[pid]
	if !ok {
		return nil, errors.Wrapf(store.ErrPartitionNotFound, "partition %d", pid)
	}
	return p, nil
}

func (s *Store) AllocatePartition(ctx context.Context) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid := s.nextPart
	s.nextPart++
	s.parts[pid] = &partition{
		tree:    btree.New(treeDegree),
		indexes: make(map[string]struct{}),
	}
	return pid, nil
}

func (s *Store) DropPartition(ctx context.Context, pid int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.partition(pid)
	if err != nil {
		return err
	}
	for name := range p.indexes {
		s.detach(s.indexes[name], pid)
	}
	delete(s.parts, pid)
	return nil
}

func (s *Store) PartitionSize(ctx context.Context, pid int32) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.partition(pid)
	if err != nil {
		return 0, err
	}
	return int64(p.tree.Len()), nil
}

func (s *Store) ScanPartition(ctx context.Context, pid int32) store.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.partition(pid)
	if err != nil {
		return &iterator{err: err}
	}
	recs := make([]*store.Record, 0, p.tree.Len())
	p.tree.Ascend(func(i btree.Item) bool {
		recs = append(recs, i.(item).rec.Clone())
		return true
	})
	return &iterator{recs: recs, pos: -1}
}

func (s *Store) Load(ctx context.Context, id types.RecordID) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.partition(id.Partition)
	if err != nil {
		return nil, err
	}
	i := p.tree.Get(item{pos: id.Position})
	if i == nil {
		return nil, errors.Wrapf(store.ErrNotFound, "record %v", id)
	}
	return i.(item).rec.Clone(), nil
}

func (s *Store) Save(ctx context.Context, rec *store.Record) (types.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.partition(rec.ID.Partition)
	if err != nil {
		return types.RecordID{}, err
	}
	rec = rec.Clone()
	if rec.ID.Position < 0 {
		rec.ID.Position = p.next
	}
	var old *store.Record
	if i := p.tree.Get(item{pos: rec.ID.Position}); i != nil {
		old = i.(item).rec
	}
	type change struct {
		ind      *index
		prev, nw []byte
	}
	changes := make([]change, 0, len(p.indexes))
	for name := range p.indexes {
		ind := s.indexes[name]
		c := change{ind: ind}
		if old != nil {
			if c.prev, _, err = store.IndexKey(ind.def, old); err != nil {
				return types.RecordID{}, err
			}
		}
		key, ok, err := store.IndexKey(ind.def, rec)
		if err != nil {
			return types.RecordID{}, err
		}
		if ok {
			if ind.conflict(key, rec.ID) {
				return types.RecordID{}, errors.Wrapf(store.ErrUniqueViolation, "index %q", name)
			}
			c.nw = key
		}
		changes = append(changes, c)
	}
	for _, c := range changes {
		if c.prev != nil {
			c.ind.remove(c.prev, rec.ID)
		}
		if c.nw != nil {
			c.ind.add(c.nw, rec.ID)
		}
	}
	p.tree.ReplaceOrInsert(item{pos: rec.ID.Position, rec: rec})
	if rec.ID.Position >= p.next {
		p.next = rec.ID.Position + 1
	}
	return rec.ID, nil
}

func (s *Store) Delete(ctx context.Context, id types.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.partition(id.Partition)
	if err != nil {
		return err
	}
	i := p.tree.Delete(item{pos: id.Position})
	if i == nil {
		return errors.Wrapf(store.ErrNotFound, "record %v", id)
	}
	rec := i.(item).rec
	for name := range p.indexes {
		ind := s.indexes[name]
		if key, ok, _ := store.IndexKey(ind.def, rec); ok {
			ind.remove(key, id)
		}
	}
	return nil
}

func (s *Store) CreateIndex(ctx context.Context, def store.IndexDefinition, partitions []int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[def.Name]; ok {
		return errors.Wrapf(store.ErrIndexExists, "index %q", def.Name)
	}
	ind := &index{
		def:     def,
		parts:   make(map[int32]struct{}),
		entries: make(map[string][]types.RecordID),
	}
	for _, pid := range partitions {
		if err := s.attach(ind, pid, false); err != nil {
			for _, p := range s.parts {
				delete(p.indexes, def.Name)
			}
			return err
		}
	}
	s.indexes[def.Name] = ind
	return nil
}

func (s *Store) DropIndex(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ind, ok := s.indexes[name]
	if !ok {
		return errors.Wrapf(store.ErrIndexNotFound, "index %q", name)
	}
	for pid := range ind.parts {
		if p, ok := s.parts[pid]; ok {
			delete(p.indexes, name)
		}
	}
	delete(s.indexes, name)
	return nil
}

func (s *Store) AddPartitionToIndex(ctx context.Context, name string, pid int32, requireEmpty bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ind, ok := s.indexes[name]
	if !ok {
		return errors.Wrapf(store.ErrIndexNotFound, "index %q", name)
	}
	return s.attach(ind, pid, requireEmpty)
}

func (s *Store) RemovePartitionFromIndex(ctx context.Context, name string, pid int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ind, ok := s.indexes[name]
	if !ok {
		return errors.Wrapf(store.ErrIndexNotFound, "index %q", name)
	}
	s.detach(ind, pid)
	if p, ok := s.parts[pid]; ok {
		delete(p.indexes, name)
	}
	return nil
}

// attach indexes every record of a partition. Nothing changes on error.
func (s *Store) attach(ind *index, pid int32, requireEmpty bool) error {
	p, err := s.partition(pid)
	if err != nil {
		return err
	}
	if _, ok := ind.parts[pid]; ok {
		return nil
	}
	if requireEmpty && p.tree.Len() != 0 {
		return errors.Wrapf(store.ErrPartitionNotEmpty, "partition %d", pid)
	}
	type entry struct {
		key []byte
		id  types.RecordID
	}
	var (
		add  []entry
		seen = make(map[string]types.RecordID)
	)
	p.tree.Ascend(func(i btree.Item) bool {
		rec := i.(item).rec
		var key []byte
		var ok bool
		key, ok, err = store.IndexKey(ind.def, rec)
		if err != nil {
			return false
		} else if !ok {
			return true
		}
		if ind.def.Type == store.Unique {
			if _, dup := seen[string(key)]; dup || ind.conflict(key, rec.ID) {
				err = errors.Wrapf(store.ErrUniqueViolation, "index %q, partition %d", ind.def.Name, pid)
				return false
			}
			seen[string(key)] = rec.ID
		}
		add = append(add, entry{key: key, id: rec.ID})
		return true
	})
	if err != nil {
		return err
	}
	for _, e := range add {
		ind.add(e.key, e.id)
	}
	ind.parts[pid] = struct{}{}
	p.indexes[ind.def.Name] = struct{}{}
	return nil
}

func (s *Store) detach(ind *index, pid int32) {
	if ind == nil {
		return
	}
	if _, ok := ind.parts[pid]; !ok {
		return
	}
	for key, ids := range ind.entries {
		out := ids[:0]
		for _, id := range ids {
			if id.Partition != pid {
				out = append(out, id)
			}
		}
		if len(out) == 0 {
			delete(ind.entries, key)
		} else {
			ind.entries[key] = out
		}
	}
	delete(ind.parts, pid)
}

// IndexSize returns the number of keys in an index.
func (s *Store) IndexSize(name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ind, ok := s.indexes[name]
	if !ok {
		return 0, errors.Wrapf(store.ErrIndexNotFound, "index %q", name)
	}
	return len(ind.entries), nil
}

// IndexPartitions returns the partitions covered by an index.
func (s *Store) IndexPartitions(name string) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ind, ok := s.indexes[name]
	if !ok {
		return nil, errors.Wrapf(store.ErrIndexNotFound, "index %q", name)
	}
	out := make([]int32, 0, len(ind.parts))
	for pid := range ind.parts {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) PutMeta(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = append([]byte(nil), data...)
	return nil
}

func (s *Store) GetMeta(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.meta[key]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "meta %q", key)
	}
	return append([]byte(nil), data...), nil
}

type iterator struct {
	recs []*store.Record
	pos  int
	err  error
}

func (it *iterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.pos+1 >= len(it.recs) {
		return false
	}
	it.pos++
	return true
}

func (it *iterator) Record() *store.Record {
	if it.pos < 0 || it.pos >= len(it.recs) {
		return nil
	}
	return it.recs[it.pos]
}

func (it *iterator) Err() error   { return it.err }
func (it *iterator) Close() error { return nil }
