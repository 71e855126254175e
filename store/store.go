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

// Package store defines the record and index storage the schema catalog
// drives, and a registry of named backends implementing them.
package store

import (
	"context"
	"io"

	"github.com/cayleygraph/catalog/types"
)

// Record is a stored document.
type Record struct {
	ID     types.RecordID
	Class  string
	Fields types.Map
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{ID: r.ID, Class: r.Class}
	if r.Fields != nil {
		out.Fields = types.Copy(r.Fields).(types.Map)
	}
	return out
}

// Iterator walks the records of a partition in position order.
//
// The usual loop is:
//
//	it := rs.ScanPartition(ctx, pid)
//	defer it.Close()
//	for it.Next(ctx) {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil {
//	}
type Iterator interface {
	Next(ctx context.Context) bool
	Record() *Record
	Err() error
	Close() error
}

// RecordStore allocates partitions and stores records in them.
type RecordStore interface {
	// AllocatePartition creates a new empty partition. Ids are never reused.
	AllocatePartition(ctx context.Context) (int32, error)
	// DropPartition removes a partition with all of its records.
	DropPartition(ctx context.Context, pid int32) error
	// ScanPartition iterates over the records of a partition.
	ScanPartition(ctx context.Context, pid int32) Iterator
	// PartitionSize returns the number of records in a partition.
	PartitionSize(ctx context.Context, pid int32) (int64, error)

	// Save stores a record. A record with a non-persistent position is
	// appended to the partition of its id and the new id is returned.
	Save(ctx context.Context, rec *Record) (types.RecordID, error)
	// Load returns a copy of a stored record or ErrNotFound.
	Load(ctx context.Context, id types.RecordID) (*Record, error)
	// Delete removes a record.
	Delete(ctx context.Context, id types.RecordID) error
}

// IndexType is the kind of an index.
type IndexType string

const (
	Unique    = IndexType("UNIQUE")
	NotUnique = IndexType("NOTUNIQUE")
)

// IndexDefinition describes an index declared on a class.
type IndexDefinition struct {
	Name   string    `json:"name"`
	Class  string    `json:"class"`
	Type   IndexType `json:"type"`
	Fields []string  `json:"fields"`
}

// IndexStore maintains indexes over sets of partitions. The catalog only
// decides which partitions belong to which index.
type IndexStore interface {
	CreateIndex(ctx context.Context, def IndexDefinition, partitions []int32) error
	DropIndex(ctx context.Context, name string) error
	// AddPartitionToIndex starts indexing the records of a partition. With
	// requireEmpty set the partition must hold no records.
	AddPartitionToIndex(ctx context.Context, index string, pid int32, requireEmpty bool) error
	RemovePartitionFromIndex(ctx context.Context, index string, pid int32) error
}

// MetaStore keeps small named blobs next to the records.
type MetaStore interface {
	PutMeta(ctx context.Context, key string, data []byte) error
	// GetMeta returns ErrNotFound for an absent key.
	GetMeta(ctx context.Context, key string) ([]byte, error)
}

// Backend is a complete storage implementation.
type Backend interface {
	RecordStore
	IndexStore
	MetaStore
	io.Closer
}

// Each calls fn for every record of a partition.
func Each(ctx context.Context, rs RecordStore, pid int32, fn func(*Record) error) error {
	it := rs.ScanPartition(ctx, pid)
	defer it.Close()
	for it.Next(ctx) {
		if err := fn(it.Record()); err != nil {
			return err
		}
	}
	return it.Err()
}
