package kv

import (
	"context"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	hkv "github.com/hidal-go/hidalgo/kv"

	"github.com/cayleygraph/catalog/store"
	"github.com/cayleygraph/catalog/types"
)

func entryPrefix(name string, key []byte) hkv.Key {
	return hkv.Key{entryBucket, []byte(name + "\x00" + hex.EncodeToString(key) + "\x00")}
}

func entryKey(name string, key []byte, id types.RecordID) hkv.Key {
	p := entryPrefix(name, key)
	return hkv.Key{p[0], append(p[1], recID(id)...)}
}

// conflict reports if key already belongs to another record in a unique index.
func conflict(ctx context.Context, tx hkv.Tx, def store.IndexDefinition, key []byte, id types.RecordID) (bool, error) {
	if def.Type != store.Unique {
		return false, nil
	}
	found := false
	err := each(ctx, tx, entryPrefix(def.Name, key), func(val []byte) error {
		if string(val) != id.String() {
			found = true
		}
		return nil
	})
	return found, err
}

// reindex moves the index entry of a record from its old version to the new
// one. A nil record means absence.
func (s *Store) reindex(ctx context.Context, tx hkv.Tx, def store.IndexDefinition, old, rec *store.Record) error {
	if old != nil {
		prev, ok, err := store.IndexKey(def, old)
		if err != nil {
			return err
		} else if ok {
			if err := tx.Del(entryKey(def.Name, prev, old.ID)); err != nil {
				return err
			}
		}
	}
	if rec == nil {
		return nil
	}
	key, ok, err := store.IndexKey(def, rec)
	if err != nil || !ok {
		return err
	}
	if dup, err := conflict(ctx, tx, def, key, rec.ID); err != nil {
		return err
	} else if dup {
		return errors.Wrapf(store.ErrUniqueViolation, "index %q", def.Name)
	}
	mIndexEntries.WithLabelValues(def.Name).Inc()
	return tx.Put(entryKey(def.Name, key, rec.ID), []byte(rec.ID.String()))
}

func (s *Store) delEntries(tx hkv.Tx, def store.IndexDefinition, recs []*store.Record) error {
	for _, rec := range recs {
		key, ok, err := store.IndexKey(def, rec)
		if err != nil {
			return err
		} else if !ok {
			continue
		}
		if err := tx.Del(entryKey(def.Name, key, rec.ID)); err != nil {
			return err
		}
	}
	return nil
}

// attach indexes the records of a partition and adds it to m.
func (s *Store) attach(ctx context.Context, tx hkv.Tx, m *indexMeta, pid int32, requireEmpty bool) error {
	p, err := s.partition(pid)
	if err != nil {
		return err
	}
	if m.has(pid) {
		return nil
	}
	if requireEmpty && p.Size != 0 {
		return errors.Wrapf(store.ErrPartitionNotEmpty, "partition %d", pid)
	}
	recs, err := s.partitionRecords(ctx, tx, pid)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{})
	for _, rec := range recs {
		key, ok, err := store.IndexKey(m.Def, rec)
		if err != nil {
			return err
		} else if !ok {
			continue
		}
		if m.Def.Type == store.Unique {
			if _, dup := seen[string(key)]; dup {
				return errors.Wrapf(store.ErrUniqueViolation, "index %q, partition %d", m.Def.Name, pid)
			}
			seen[string(key)] = struct{}{}
		}
		if err := s.reindex(ctx, tx, m.Def, nil, rec); err != nil {
			return err
		}
	}
	m.Parts = append(m.Parts, pid)
	return nil
}

func (s *Store) CreateIndex(ctx context.Context, def store.IndexDefinition, partitions []int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[def.Name]; ok {
		return errors.Wrapf(store.ErrIndexExists, "index %q", def.Name)
	}
	m := &indexMeta{Def: def}
	err := s.update(ctx, func(tx hkv.Tx) error {
		for _, pid := range partitions {
			if err := s.attach(ctx, tx, m, pid, false); err != nil {
				return err
			}
		}
		return putJSON(tx, idxKey(def.Name), m)
	})
	if err != nil {
		return err
	}
	s.indexes[def.Name] = m
	return nil
}

func (s *Store) DropIndex(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.indexes[name]
	if !ok {
		return errors.Wrapf(store.ErrIndexNotFound, "index %q", name)
	}
	err := s.update(ctx, func(tx hkv.Tx) error {
		for _, pid := range m.Parts {
			recs, err := s.partitionRecords(ctx, tx, pid)
			if err != nil {
				return err
			}
			if err := s.delEntries(tx, m.Def, recs); err != nil {
				return err
			}
		}
		return tx.Del(idxKey(name))
	})
	if err != nil {
		return err
	}
	delete(s.indexes, name)
	return nil
}

func (s *Store) AddPartitionToIndex(ctx context.Context, name string, pid int32, requireEmpty bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.indexes[name]
	if !ok {
		return errors.Wrapf(store.ErrIndexNotFound, "index %q", name)
	}
	nm := m.clone()
	err := s.update(ctx, func(tx hkv.Tx) error {
		if err := s.attach(ctx, tx, nm, pid, requireEmpty); err != nil {
			return err
		}
		return putJSON(tx, idxKey(name), nm)
	})
	if err != nil {
		return err
	}
	s.indexes[name] = nm
	return nil
}

func (s *Store) RemovePartitionFromIndex(ctx context.Context, name string, pid int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.indexes[name]
	if !ok {
		return errors.Wrapf(store.ErrIndexNotFound, "index %q", name)
	}
	if !m.has(pid) {
		return nil
	}
	nm := m.without(pid)
	err := s.update(ctx, func(tx hkv.Tx) error {
		recs, err := s.partitionRecords(ctx, tx, pid)
		if err != nil {
			return err
		}
		if err := s.delEntries(tx, m.Def, recs); err != nil {
			return err
		}
		return putJSON(tx, idxKey(name), nm)
	})
	if err != nil {
		return err
	}
	s.indexes[name] = nm
	return nil
}
