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

package kv

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	hkv "github.com/hidal-go/hidalgo/kv"

	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

// First byte of a stored record value.
const (
	encPlain  = byte(0)
	encSnappy = byte(1)
)

type recordData struct {
	ID     types.RecordID  `json:"id"`
	Class  string          `json:"class"`
	Fields json.RawMessage `json:"fields"`
}

func (s *Store) encodeRecord(rec *store.Record) ([]byte, error) {
	fields := rec.Fields
	if fields == nil {
		fields = types.Map{}
	}
	fdata, err := types.MarshalValue(fields)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(recordData{ID: rec.ID, Class: rec.Class, Fields: fdata})
	if err != nil {
		return nil, err
	}
	if s.compress {
		return append([]byte{encSnappy}, snappy.Encode(nil, data)...), nil
	}
	return append([]byte{encPlain}, data...), nil
}

func (s *Store) decodeRecord(val []byte) (*store.Record, error) {
	if len(val) == 0 {
		return nil, errors.New("kv: empty record value")
	}
	data := val[1:]
	switch val[0] {
	case encPlain:
	case encSnappy:
		var err error
		if data, err = snappy.Decode(nil, data); err != nil {
			return nil, errors.Wrap(err, "kv: cannot decompress record")
		}
	default:
		return nil, errors.Newf("kv: unknown record encoding %d", val[0])
	}
	var rd recordData
	if err := json.Unmarshal(data, &rd); err != nil {
		return nil, errors.Wrap(err, "kv: cannot decode record")
	}
	fv, err := types.UnmarshalValue(rd.Fields)
	if err != nil {
		return nil, errors.Wrapf(err, "kv: cannot decode fields of %v", rd.ID)
	}
	fields, ok := fv.(types.Map)
	if !ok {
		return nil, errors.Newf("kv: record %v fields are %T", rd.ID, fv)
	}
	return &store.Record{ID: rd.ID, Class: rd.Class, Fields: fields}, nil
}

// getRecord returns nil for an absent record.
func (s *Store) getRecord(ctx context.Context, tx hkv.Tx, id types.RecordID) (*store.Record, error) {
	if !s.mayExist(id) {
		return nil, nil
	}
	val, err := tx.Get(ctx, recKey(id))
	if err == hkv.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return s.decodeRecord(val)
}

func (s *Store) partitionRecords(ctx context.Context, tx hkv.Tx, pid int32) ([]*store.Record, error) {
	var out []*store.Record
	err := each(ctx, tx, recPrefix(pid), func(val []byte) error {
		rec, err := s.decodeRecord(val)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *Store) indexesOf(pid int32) []*indexMeta {
	var out []*indexMeta
	for _, m := range s.indexes {
		if m.has(pid) {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) Save(ctx context.Context, rec *store.Record) (types.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.partition(rec.ID.Partition)
	if err != nil {
		return types.RecordID{}, err
	}
	np := *p
	rec = rec.Clone()
	if rec.ID.Position < 0 {
		rec.ID.Position = np.Next
	}
	var size int
	err = s.update(ctx, func(tx hkv.Tx) error {
		old, err := s.getRecord(ctx, tx, rec.ID)
		if err != nil {
			return err
		}
		for _, m := range s.indexesOf(np.ID) {
			if err := s.reindex(ctx, tx, m.Def, old, rec); err != nil {
				return err
			}
		}
		data, err := s.encodeRecord(rec)
		if err != nil {
			return err
		}
		size = len(data)
		if err := tx.Put(recKey(rec.ID), data); err != nil {
			return err
		}
		if old == nil {
			np.Size++
		}
		if rec.ID.Position >= np.Next {
			np.Next = rec.ID.Position + 1
		}
		return putJSON(tx, partKey(np.ID), &np)
	})
	if err != nil {
		return types.RecordID{}, err
	}
	s.parts[np.ID] = &np
	s.cache.Put(rec.ID, rec)
	s.markExists(rec.ID)
	mRecordsSaved.Inc()
	mRecordSize.Observe(float64(size))
	return rec.ID, nil
}

func (s *Store) Load(ctx context.Context, id types.RecordID) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.partition(id.Partition); err != nil {
		return nil, err
	}
	if !s.mayExist(id) {
		mRecordsBloomHit.Inc()
		return nil, errors.Wrapf(store.ErrNotFound, "record %v", id)
	}
	mRecordsBloomMiss.Inc()
	if rec, ok := s.cache.Get(id); ok {
		mRecordCacheHit.Inc()
		return rec.Clone(), nil
	}
	mRecordCacheMiss.Inc()
	var rec *store.Record
	err := hkv.View(s.db, func(tx hkv.Tx) error {
		var err error
		rec, err = s.getRecord(ctx, wrapTx(tx), id)
		return err
	})
	if err != nil {
		return nil, err
	} else if rec == nil {
		return nil, errors.Wrapf(store.ErrNotFound, "record %v", id)
	}
	s.cache.Put(id, rec)
	return rec.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, id types.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.partition(id.Partition)
	if err != nil {
		return err
	}
	np := *p
	err = s.update(ctx, func(tx hkv.Tx) error {
		old, err := s.getRecord(ctx, tx, id)
		if err != nil {
			return err
		} else if old == nil {
			return errors.Wrapf(store.ErrNotFound, "record %v", id)
		}
		for _, m := range s.indexesOf(np.ID) {
			if err := s.reindex(ctx, tx, m.Def, old, nil); err != nil {
				return err
			}
		}
		if err := tx.Del(recKey(id)); err != nil {
			return err
		}
		np.Size--
		return putJSON(tx, partKey(np.ID), &np)
	})
	if err != nil {
		return err
	}
	s.parts[np.ID] = &np
	s.cache.Del(id)
	s.unmarkExists(id)
	mRecordsDeleted.Inc()
	return nil
}

func (s *Store) ScanPartition(ctx context.Context, pid int32) store.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.partition(pid); err != nil {
		return &iterator{err: err}
	}
	return &iterator{s: s, pid: pid}
}

const scanBatch = 256

// iterator lists the ids of a partition first and then loads records in
// batches, so no KV transaction stays open while the caller writes.
type iterator struct {
	s   *Store
	pid int32

	ids  []types.RecordID
	init bool
	buf  []*store.Record
	cur  *store.Record
	err  error
}

func (it *iterator) listIDs(ctx context.Context) error {
	// TODO: seek to the last seen position instead of listing ids upfront
	// once ranged scans are available for every hidalgo backend.
	return hkv.View(it.s.db, func(tx hkv.Tx) error {
		return each(ctx, wrapTx(tx), recPrefix(it.pid), func(val []byte) error {
			rec, err := it.s.decodeRecord(val)
			if err != nil {
				return err
			}
			it.ids = append(it.ids, rec.ID)
			return nil
		})
	})
}

func (it *iterator) fill(ctx context.Context) error {
	n := len(it.ids)
	if n > scanBatch {
		n = scanBatch
	}
	batch := it.ids[:n]
	it.ids = it.ids[n:]
	keys := make([]hkv.Key, 0, len(batch))
	for _, id := range batch {
		keys = append(keys, recKey(id))
	}
	return hkv.View(it.s.db, func(tx hkv.Tx) error {
		vals, err := wrapTx(tx).GetBatch(ctx, keys)
		if err != nil {
			return err
		}
		for _, v := range vals {
			if v == nil {
				// deleted since the ids were listed
				continue
			}
			rec, err := it.s.decodeRecord(v)
			if err != nil {
				return err
			}
			it.buf = append(it.buf, rec)
		}
		return nil
	})
}

func (it *iterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if !it.init {
		it.init = true
		if it.err = it.listIDs(ctx); it.err != nil {
			return false
		}
	}
	for len(it.buf) == 0 {
		if len(it.ids) == 0 {
			it.cur = nil
			return false
		}
		if it.err = ctx.Err(); it.err != nil {
			return false
		}
		if it.err = it.fill(ctx); it.err != nil {
			return false
		}
	}
	it.cur, it.buf = it.buf[0], it.buf[1:]
	return true
}

func (it *iterator) Record() *store.Record { return it.cur }
func (it *iterator) Err() error            { return it.err }

func (it *iterator) Close() error {
	it.ids, it.buf, it.cur = nil, nil, nil
	return nil
}
