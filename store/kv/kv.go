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

// Package kv is a persistent storage backend on top of any hidalgo
// key-value database.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	hkv "github.com/hidal-go/hidalgo/kv"
	boom "github.com/tylertreat/BoomFilters"

	"github.com/cayleygraph/catalog/clog"
	"github.com/cayleygraph/catalog/internal/lru"
	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

const (
	// OptBloom enables the record existence filter. Enabled by default.
	OptBloom = "bloom"
	// OptBloomSize is the expected number of records for the existence filter.
	OptBloomSize = "bloom_size"
	// OptCacheSize is the number of decoded records kept in memory.
	OptCacheSize = "cache_size"
	// OptCompress compresses record values with snappy.
	OptCompress = "compress"
)

const (
	latestDataVersion = 1

	defaultBloomSize = 1 << 20
	defaultCacheSize = 4096
)

var (
	metaBucket  = []byte("meta")
	partBucket  = []byte("part")
	recBucket   = []byte("rec")
	idxBucket   = []byte("idx")
	entryBucket = []byte("ient")

	buckets = [][]byte{metaBucket, partBucket, recBucket, idxBucket, entryBucket}

	keyVersion  = hkv.Key{metaBucket, []byte("version")}
	keyNextPart = hkv.Key{metaBucket, []byte("next_partition")}
)

type OpenFunc func(path string, opts store.Options) (hkv.KV, error)

type Registration struct {
	OpenFunc     OpenFunc
	IsPersistent bool
}

// Register makes a hidalgo database available as a storage backend.
func Register(name string, r Registration) {
	store.Register(name, store.Registration{
		InitFunc: func(path string, opts store.Options) error {
			db, err := r.OpenFunc(path, opts)
			if err != nil {
				return err
			}
			defer db.Close()
			return Init(db, opts)
		},
		NewFunc: func(path string, opts store.Options) (store.Backend, error) {
			db, err := r.OpenFunc(path, opts)
			if err != nil {
				return nil, err
			}
			if !r.IsPersistent {
				if err = Init(db, opts); err != nil {
					db.Close()
					return nil, err
				}
			}
			s, err := New(db, opts)
			if err != nil {
				db.Close()
				return nil, err
			}
			return s, nil
		},
		IsPersistent: r.IsPersistent,
	})
}

type partMeta struct {
	ID   int32 `json:"id"`
	Next int64 `json:"next"`
	Size int64 `json:"size"`
}

type indexMeta struct {
	Def   store.IndexDefinition `json:"def"`
	Parts []int32               `json:"partitions"`
}

func (m *indexMeta) has(pid int32) bool {
	for _, p := range m.Parts {
		if p == pid {
			return true
		}
	}
	return false
}

func (m *indexMeta) clone() *indexMeta {
	return &indexMeta{Def: m.Def, Parts: append([]int32(nil), m.Parts...)}
}

func (m *indexMeta) without(pid int32) *indexMeta {
	out := &indexMeta{Def: m.Def}
	for _, p := range m.Parts {
		if p != pid {
			out.Parts = append(out.Parts, p)
		}
	}
	return out
}

var _ store.Backend = (*Store)(nil)

// Store keeps partitions, records and index entries in a KV database.
// Partition and index metadata is mirrored in memory; writes are serialized.
type Store struct {
	db       hkv.KV
	compress bool

	mu       sync.RWMutex
	nextPart int32
	parts    map[int32]*partMeta
	indexes  map[string]*indexMeta

	cache *lru.Cache[types.RecordID, *store.Record]

	exists struct {
		sync.Mutex
		*boom.DeletableBloomFilter
	}
}

func partKey(pid int32) hkv.Key {
	return hkv.Key{partBucket, []byte(fmt.Sprintf("%08x", uint32(pid)))}
}

func recPrefix(pid int32) hkv.Key {
	return hkv.Key{recBucket, []byte(fmt.Sprintf("%08x", uint32(pid)))}
}

func recID(id types.RecordID) []byte {
	return []byte(fmt.Sprintf("%08x%016x", uint32(id.Partition), uint64(id.Position)))
}

func recKey(id types.RecordID) hkv.Key {
	return hkv.Key{recBucket, recID(id)}
}

func idxKey(name string) hkv.Key {
	return hkv.Key{idxBucket, []byte(name)}
}

func metaKey(key string) hkv.Key {
	return hkv.Key{metaBucket, []byte("user/" + key)}
}

// Init prepares an empty database.
func Init(db hkv.KV, opts store.Options) error {
	ctx := context.TODO()
	if _, err := getVersion(ctx, db); err == nil {
		return store.ErrDatabaseExists
	} else if !errors.Is(err, store.ErrNotInitialized) {
		return err
	}
	return hkv.Update(ctx, db, func(tx hkv.Tx) error {
		for _, b := range buckets {
			_ = hkv.CreateBucket(ctx, tx, hkv.Key{b})
		}
		tx = wrapTx(tx)
		if err := tx.Put(keyNextPart, []byte("0")); err != nil {
			return err
		}
		return tx.Put(keyVersion, []byte(strconv.Itoa(latestDataVersion)))
	})
}

func getVersion(ctx context.Context, db hkv.KV) (int, error) {
	var vers int
	err := hkv.View(db, func(tx hkv.Tx) error {
		val, err := wrapTx(tx).Get(ctx, keyVersion)
		if err == hkv.ErrNotFound {
			return store.ErrNotInitialized
		} else if err != nil {
			return err
		}
		vers, err = strconv.Atoi(string(val))
		return err
	})
	return vers, err
}

// New opens a database prepared by Init.
func New(db hkv.KV, opts store.Options) (*Store, error) {
	ctx := context.TODO()
	vers, err := getVersion(ctx, db)
	if err != nil {
		return nil, err
	} else if vers != latestDataVersion {
		return nil, errors.Newf("kv: data version %d is not supported, expected %d", vers, latestDataVersion)
	}
	s := &Store{
		db:      db,
		parts:   make(map[int32]*partMeta),
		indexes: make(map[string]*indexMeta),
	}
	if s.compress, err = opts.BoolKey(OptCompress, false); err != nil {
		return nil, err
	}
	cacheSize, err := opts.IntKey(OptCacheSize, defaultCacheSize)
	if err != nil {
		return nil, err
	}
	s.cache = lru.New[types.RecordID, *store.Record](cacheSize)
	if err := s.loadMeta(ctx); err != nil {
		return nil, err
	}
	bloom, err := opts.BoolKey(OptBloom, true)
	if err != nil {
		return nil, err
	}
	if bloom {
		size, err := opts.IntKey(OptBloomSize, defaultBloomSize)
		if err != nil {
			return nil, err
		}
		if err := s.initBloomFilter(ctx, size); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) loadMeta(ctx context.Context) error {
	return hkv.View(s.db, func(tx hkv.Tx) error {
		tx = wrapTx(tx)
		val, err := tx.Get(ctx, keyNextPart)
		if err != nil {
			return err
		}
		next, err := strconv.ParseInt(string(val), 10, 32)
		if err != nil {
			return errors.Wrap(err, "kv: cannot decode partition counter")
		}
		s.nextPart = int32(next)
		if err := each(ctx, tx, hkv.Key{partBucket}, func(val []byte) error {
			var p partMeta
			if err := json.Unmarshal(val, &p); err != nil {
				return errors.Wrap(err, "kv: cannot decode partition")
			}
			s.parts[p.ID] = &p
			return nil
		}); err != nil {
			return err
		}
		return each(ctx, tx, hkv.Key{idxBucket}, func(val []byte) error {
			var m indexMeta
			if err := json.Unmarshal(val, &m); err != nil {
				return errors.Wrap(err, "kv: cannot decode index")
			}
			s.indexes[m.Def.Name] = &m
			return nil
		})
	})
}

func (s *Store) initBloomFilter(ctx context.Context, size int) error {
	if size <= 0 {
		size = defaultBloomSize
	}
	s.exists.DeletableBloomFilter = boom.NewDeletableBloomFilter(uint(size), 120, 0.05)
	n := 0
	err := hkv.View(s.db, func(tx hkv.Tx) error {
		return each(ctx, wrapTx(tx), hkv.Key{recBucket}, func(val []byte) error {
			rec, err := s.decodeRecord(val)
			if err != nil {
				return err
			}
			s.exists.Add(recID(rec.ID))
			n++
			return nil
		})
	})
	if err != nil {
		return err
	}
	clog.Infof("kv: existence filter loaded with %d records", n)
	return nil
}

func (s *Store) markExists(id types.RecordID) {
	if s.exists.DeletableBloomFilter == nil {
		return
	}
	s.exists.Lock()
	s.exists.Add(recID(id))
	s.exists.Unlock()
}

func (s *Store) unmarkExists(id types.RecordID) {
	if s.exists.DeletableBloomFilter == nil {
		return
	}
	s.exists.Lock()
	s.exists.TestAndRemove(recID(id))
	s.exists.Unlock()
}

// mayExist returns false only for records that are known to be absent.
func (s *Store) mayExist(id types.RecordID) bool {
	if s.exists.DeletableBloomFilter == nil {
		return true
	}
	s.exists.Lock()
	defer s.exists.Unlock()
	return s.exists.Test(recID(id))
}

func (s *Store) Close() error {
	return s.db.Close()
}

func each(ctx context.Context, tx hkv.Tx, pref hkv.Key, fnc func(val []byte) error) error {
	it := tx.Scan(pref)
	defer it.Close()
	for it.Next(ctx) {
		if err := fnc(it.Val()); err != nil {
			return err
		}
	}
	return it.Err()
}

func putJSON(tx hkv.Tx, key hkv.Key, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Put(key, data)
}

func (s *Store) update(ctx context.Context, fnc func(tx hkv.Tx) error) error {
	tx, err := s.db.Tx(true)
	if err != nil {
		return err
	}
	tx = wrapTx(tx)
	defer tx.Close()
	if err := fnc(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) AllocatePartition(ctx context.Context) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &partMeta{ID: s.nextPart}
	err := s.update(ctx, func(tx hkv.Tx) error {
		if err := tx.Put(keyNextPart, []byte(strconv.Itoa(int(p.ID)+1))); err != nil {
			return err
		}
		return putJSON(tx, partKey(p.ID), p)
	})
	if err != nil {
		return 0, err
	}
	s.nextPart++
	s.parts[p.ID] = p
	return p.ID, nil
}

func (s *Store) partition(pid int32) (*partMeta, error) {
	p, ok := s.parts[pid]
	if !ok {
		return nil, errors.Wrapf(store.ErrPartitionNotFound, "partition %d", pid)
	}
	return p, nil
}

func (s *Store) PartitionSize(ctx context.Context, pid int32) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.partition(pid)
	if err != nil {
		return 0, err
	}
	return p.Size, nil
}

func (s *Store) DropPartition(ctx context.Context, pid int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.partition(pid); err != nil {
		return err
	}
	var (
		ids     []types.RecordID
		indexes = make(map[string]*indexMeta)
	)
	err := s.update(ctx, func(tx hkv.Tx) error {
		recs, err := s.partitionRecords(ctx, tx, pid)
		if err != nil {
			return err
		}
		for _, m := range s.indexes {
			if !m.has(pid) {
				continue
			}
			if err := s.delEntries(tx, m.Def, recs); err != nil {
				return err
			}
			nm := m.without(pid)
			if err := putJSON(tx, idxKey(nm.Def.Name), nm); err != nil {
				return err
			}
			indexes[nm.Def.Name] = nm
		}
		for _, rec := range recs {
			if err := tx.Del(recKey(rec.ID)); err != nil {
				return err
			}
			ids = append(ids, rec.ID)
		}
		return tx.Del(partKey(pid))
	})
	if err != nil {
		return err
	}
	for name, m := range indexes {
		s.indexes[name] = m
	}
	for _, id := range ids {
		s.cache.Del(id)
		s.unmarkExists(id)
	}
	delete(s.parts, pid)
	mRecordsDeleted.Add(float64(len(ids)))
	return nil
}

func (s *Store) PutMeta(ctx context.Context, key string, data []byte) error {
	return hkv.Update(ctx, s.db, func(tx hkv.Tx) error {
		return wrapTx(tx).Put(metaKey(key), data)
	})
}

func (s *Store) GetMeta(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := hkv.View(s.db, func(tx hkv.Tx) error {
		val, err := wrapTx(tx).Get(ctx, metaKey(key))
		if err == hkv.ErrNotFound {
			return errors.Wrapf(store.ErrNotFound, "meta %q", key)
		} else if err != nil {
			return err
		}
		out = append([]byte(nil), val...)
		return nil
	})
	return out, err
}

// Names of hidalgo backends are registered without the "flat." prefix
// unless another backend already uses the short name.
func init() {
	list := hkv.List()
	names := make(map[string]bool, len(list))
	for _, r := range list {
		names[r.Name] = true
	}
	for _, r := range list {
		r := r
		name := r.Name
		if strings.HasPrefix(name, "flat.") && !names[name[5:]] && !store.IsRegistered(name[5:]) {
			name = name[5:]
		}
		if store.IsRegistered(name) {
			continue
		}
		Register(name, Registration{
			OpenFunc: func(path string, _ store.Options) (hkv.KV, error) {
				return r.OpenPath(path)
			},
			IsPersistent: !r.Volatile,
		})
	}
}
