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

package types

import (
	"bytes"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Kind identifies the runtime representation of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindDecimal
	KindDateTime
	KindString
	KindBinary
	KindRecordID
	KindEntity
	KindList
	KindSet
	KindMap
	KindLinkList
	KindLinkSet
	KindLinkMap
	KindLinkBag
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindByte:     "byte",
	KindShort:    "short",
	KindInt:      "int",
	KindLong:     "long",
	KindFloat:    "float",
	KindDouble:   "double",
	KindDecimal:  "decimal",
	KindDateTime: "datetime",
	KindString:   "string",
	KindBinary:   "binary",
	KindRecordID: "rid",
	KindEntity:   "entity",
	KindList:     "list",
	KindSet:      "set",
	KindMap:      "map",
	KindLinkList: "linklist",
	KindLinkSet:  "linkset",
	KindLinkMap:  "linkmap",
	KindLinkBag:  "linkbag",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a property value as produced by the record layer.
//
// A nil Value is the null value. The set of implementations is closed.
type Value interface {
	Kind() Kind
}

type (
	Bool    bool
	Int8    int8
	Int16   int16
	Int32   int32
	Int64   int64
	Float32 float32
	Float64 float64
	// Text is a text value.
	Text string
	// Bytes is an opaque byte string.
	Bytes []byte
)

// Dec is an arbitrary precision decimal number.
type Dec struct {
	apd.Decimal
}

// Time is a point in time with millisecond precision.
type Time struct {
	time.Time
}

// Entity is a document. Embedded entities live inside their parent record;
// the others are records of their own and are referenced by identity.
type Entity struct {
	ID       RecordID
	Class    string
	Embedded bool
	Fields   map[string]Value
}

type (
	// List is an ordered collection; the generic sequence input of the record layer.
	List []Value
	// Set is an ordered collection without duplicates.
	Set []Value
	// Map is a string keyed collection; the generic map input of the record layer.
	Map map[string]Value
	// RefList is an ordered collection of references.
	RefList []Value
	// RefSet is a collection of distinct references.
	RefSet []Value
	// RefMap is a string keyed collection of references.
	RefMap map[string]Value
	// RefBag is an unordered multiset of references.
	RefBag []Value
)

func (Bool) Kind() Kind     { return KindBool }
func (Int8) Kind() Kind     { return KindByte }
func (Int16) Kind() Kind    { return KindShort }
func (Int32) Kind() Kind    { return KindInt }
func (Int64) Kind() Kind    { return KindLong }
func (Float32) Kind() Kind  { return KindFloat }
func (Float64) Kind() Kind  { return KindDouble }
func (*Dec) Kind() Kind     { return KindDecimal }
func (Time) Kind() Kind     { return KindDateTime }
func (Text) Kind() Kind     { return KindString }
func (Bytes) Kind() Kind    { return KindBinary }
func (RecordID) Kind() Kind { return KindRecordID }
func (*Entity) Kind() Kind  { return KindEntity }
func (List) Kind() Kind     { return KindList }
func (Set) Kind() Kind      { return KindSet }
func (Map) Kind() Kind      { return KindMap }
func (RefList) Kind() Kind  { return KindLinkList }
func (RefSet) Kind() Kind   { return KindLinkSet }
func (RefMap) Kind() Kind   { return KindLinkMap }
func (RefBag) Kind() Kind   { return KindLinkBag }

// Identifiable is a value that identifies a record: a RecordID or a
// non-embedded Entity.
type Identifiable interface {
	Value
	Identity() RecordID
}

func (id RecordID) Identity() RecordID { return id }

func (e *Entity) Identity() RecordID { return e.ID }

// NewDecimal parses a decimal from its text form.
func NewDecimal(s string) (*Dec, error) {
	d := new(Dec)
	if _, _, err := d.SetString(s); err != nil {
		return nil, err
	}
	return d, nil
}

// DecimalFromInt returns a decimal with the given integer value.
func DecimalFromInt(v int64) *Dec {
	d := new(Dec)
	d.SetInt64(v)
	return d
}

// Millis returns a Time for a Unix time in milliseconds.
func Millis(ms int64) Time {
	return Time{Time: time.UnixMilli(ms).UTC()}
}

// NewEntity returns an embedded entity of the given class.
func NewEntity(class string, fields map[string]Value) *Entity {
	if fields == nil {
		fields = make(map[string]Value)
	}
	return &Entity{ID: NewRecordID, Class: class, Embedded: true, Fields: fields}
}

// seq returns the items of any ordered or unordered collection value.
func seq(v Value) ([]Value, bool) {
	switch v := v.(type) {
	case List:
		return v, true
	case Set:
		return v, true
	case RefList:
		return v, true
	case RefSet:
		return v, true
	case RefBag:
		return v, true
	}
	return nil, false
}

// mapOf returns the entries of any map value.
func mapOf(v Value) (map[string]Value, bool) {
	switch v := v.(type) {
	case Map:
		return v, true
	case RefMap:
		return v, true
	}
	return nil, false
}

// Items returns the items of a collection value, or the values of a map
// value in key order.
func Items(v Value) ([]Value, bool) {
	if s, ok := seq(v); ok {
		return s, true
	}
	if m, ok := mapOf(v); ok {
		return sortedValues(m), true
	}
	return nil, false
}

// Len returns the number of items of a collection, the length of a string
// or binary value, and -1 for everything else.
func Len(v Value) int {
	switch v := v.(type) {
	case Text:
		return len([]rune(string(v)))
	case Bytes:
		return len(v)
	}
	if s, ok := seq(v); ok {
		return len(s)
	}
	if m, ok := mapOf(v); ok {
		return len(m)
	}
	return -1
}

// Equal reports if two values are deeply equal. Numbers of different kinds
// are not equal; references compare by identity.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *Dec:
		return a.Cmp(&b.(*Dec).Decimal) == 0
	case Time:
		return a.Equal(b.(Time).Time)
	case Bytes:
		return bytes.Equal(a, b.(Bytes))
	case *Entity:
		e := b.(*Entity)
		if a == e {
			return true
		}
		if !a.Embedded || !e.Embedded {
			return !a.Embedded && !e.Embedded && a.ID == e.ID && a.ID.IsPersistent()
		}
		return a.Class == e.Class && equalMaps(a.Fields, e.Fields)
	case List, Set, RefList, RefSet, RefBag:
		as, _ := seq(a)
		bs, _ := seq(b)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	case Map, RefMap:
		am, _ := mapOf(a)
		bm, _ := mapOf(b)
		return equalMaps(am, bm)
	}
	return a == b
}

func equalMaps(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !Equal(v, w) {
			return false
		}
	}
	return true
}
