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

// Package types implements the closed set of property type tags, the value
// representation they operate on, and the conversion rules between them.
package types

import (
	"fmt"
	"strings"
)

// Tag is one member of the closed set of property types.
//
// The zero value is Invalid and is used to express "no linked type".
type Tag uint8

const (
	Invalid Tag = iota
	Boolean
	Integer
	Short
	Long
	Float
	Double
	DateTime
	String
	Binary
	Embedded
	EmbeddedList
	EmbeddedSet
	EmbeddedMap
	Link
	LinkList
	LinkSet
	LinkMap
	Byte
	Date
	Decimal
	LinkBag

	nTags
)

type tagInfo struct {
	name string
	id   int
	repr Kind
	// compatible lists the value kinds accepted by IsConvertibleFrom
	// besides the canonical representation.
	compatible []Kind
	castable   []Tag
}

var numericKinds = []Kind{KindBool, KindByte, KindShort, KindInt, KindLong, KindFloat, KindDouble, KindDecimal}

var tags = [nTags]tagInfo{
	Boolean:      {name: "BOOLEAN", id: 0, repr: KindBool, compatible: numericKinds},
	Integer:      {name: "INTEGER", id: 1, repr: KindInt, compatible: numericKinds, castable: []Tag{Boolean, Byte, Short}},
	Short:        {name: "SHORT", id: 2, repr: KindShort, compatible: numericKinds, castable: []Tag{Boolean, Byte}},
	Long:         {name: "LONG", id: 3, repr: KindLong, compatible: numericKinds, castable: []Tag{Boolean, Byte, Short, Integer}},
	Float:        {name: "FLOAT", id: 4, repr: KindFloat, compatible: numericKinds, castable: []Tag{Boolean, Byte, Short, Integer}},
	Double:       {name: "DOUBLE", id: 5, repr: KindDouble, compatible: numericKinds, castable: []Tag{Boolean, Byte, Short, Integer, Long, Float}},
	DateTime:     {name: "DATETIME", id: 6, repr: KindDateTime, compatible: append([]Kind{KindDateTime}, numericKinds...)},
	String:       {name: "STRING", id: 7, repr: KindString},
	Binary:       {name: "BINARY", id: 8, repr: KindBinary},
	Embedded:     {name: "EMBEDDED", id: 9, repr: KindEntity, compatible: []Kind{KindEntity}},
	EmbeddedList: {name: "EMBEDDEDLIST", id: 10, repr: KindList, compatible: []Kind{KindList}, castable: []Tag{EmbeddedSet}},
	EmbeddedSet:  {name: "EMBEDDEDSET", id: 11, repr: KindSet, compatible: []Kind{KindSet}},
	EmbeddedMap:  {name: "EMBEDDEDMAP", id: 12, repr: KindMap, compatible: []Kind{KindMap}},
	Link:         {name: "LINK", id: 13, repr: KindRecordID, compatible: []Kind{KindRecordID, KindEntity}},
	LinkList:     {name: "LINKLIST", id: 14, repr: KindLinkList, compatible: []Kind{KindList}, castable: []Tag{LinkSet}},
	LinkSet:      {name: "LINKSET", id: 15, repr: KindLinkSet, compatible: []Kind{KindSet}},
	LinkMap:      {name: "LINKMAP", id: 16, repr: KindLinkMap, compatible: []Kind{KindMap}},
	Byte:         {name: "BYTE", id: 17, repr: KindByte, compatible: numericKinds, castable: []Tag{Boolean}},
	Date:         {name: "DATE", id: 19, repr: KindDateTime, compatible: numericKinds},
	Decimal:      {name: "DECIMAL", id: 21, repr: KindDecimal, compatible: numericKinds, castable: []Tag{Boolean, Byte, Short, Integer, Long, Float, Double}},
	LinkBag:      {name: "LINKBAG", id: 22, repr: KindLinkBag},
}

var (
	tagsByID   = make(map[int]Tag)
	tagsByName = make(map[string]Tag)
)

func init() {
	for t := Tag(1); t < nTags; t++ {
		tagsByID[tags[t].id] = t
		tagsByName[tags[t].name] = t
	}
}

// Tags returns all valid tags ordered by their internal position.
func Tags() []Tag {
	out := make([]Tag, 0, nTags-1)
	for t := Tag(1); t < nTags; t++ {
		out = append(out, t)
	}
	return out
}

// TagByID returns a tag by its stable numeric id.
func TagByID(id int) (Tag, bool) {
	t, ok := tagsByID[id]
	return t, ok
}

// ParseTag resolves a tag by its name, ignoring case.
func ParseTag(name string) (Tag, error) {
	t, ok := tagsByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Invalid, fmt.Errorf("types: unknown type %q", name)
	}
	return t, nil
}

// Valid reports if t is a member of the closed tag set.
func (t Tag) Valid() bool { return t > Invalid && t < nTags }

// ID returns the stable numeric id of the tag, or -1 for Invalid.
func (t Tag) ID() int {
	if !t.Valid() {
		return -1
	}
	return tags[t].id
}

func (t Tag) String() string {
	if !t.Valid() {
		return "INVALID"
	}
	return tags[t].name
}

func (t Tag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return []byte{}, nil
	}
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = Invalid
		return nil
	}
	v, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Repr returns the kind of the canonical in-memory representation of the tag.
func (t Tag) Repr() Kind {
	if !t.Valid() {
		return KindNull
	}
	return tags[t].repr
}

// CastableFrom returns the tags from which a property can be widened to t
// without rewriting already stored values. The result always contains t.
func (t Tag) CastableFrom() []Tag {
	if !t.Valid() {
		return nil
	}
	out := make([]Tag, 0, len(tags[t].castable)+1)
	out = append(out, t)
	return append(out, tags[t].castable...)
}

// CanCastFrom reports if values of tag o are acceptable for a property of tag t.
func (t Tag) CanCastFrom(o Tag) bool {
	if t == o {
		return t.Valid()
	}
	for _, c := range tags[t].castable {
		if c == o {
			return true
		}
	}
	return false
}

// IsLink reports if the tag stores references to other records.
func (t Tag) IsLink() bool {
	switch t {
	case Link, LinkList, LinkSet, LinkMap, LinkBag:
		return true
	}
	return false
}

// IsEmbedded reports if the tag stores an embedded document or an embedded collection.
func (t Tag) IsEmbedded() bool {
	switch t {
	case Embedded, EmbeddedList, EmbeddedSet, EmbeddedMap:
		return true
	}
	return false
}

// IsMultiValue reports if the tag holds a collection.
func (t Tag) IsMultiValue() bool {
	switch t {
	case EmbeddedList, EmbeddedSet, EmbeddedMap, LinkList, LinkSet, LinkMap, LinkBag:
		return true
	}
	return false
}

// IsNumeric reports if the tag is one of the number tags.
func (t Tag) IsNumeric() bool {
	switch t {
	case Byte, Short, Integer, Long, Float, Double, Decimal:
		return true
	}
	return false
}

// IsTemporal reports if the tag stores a point in time.
func (t Tag) IsTemporal() bool { return t == Date || t == DateTime }

// AcceptsLinkedType reports if a property of this tag may declare a linked type.
func (t Tag) AcceptsLinkedType() bool {
	switch t {
	case EmbeddedList, EmbeddedSet, EmbeddedMap:
		return true
	}
	return false
}

// AcceptsLinkedClass reports if a property of this tag may declare a linked class.
func (t Tag) AcceptsLinkedClass() bool {
	return t.IsLink() || t.IsEmbedded()
}

// numericRank orders number tags for promotion. Non-numeric tags return -1.
func (t Tag) numericRank() int {
	switch t {
	case Byte:
		return 0
	case Short:
		return 1
	case Integer:
		return 2
	case Long:
		return 3
	case Float:
		return 4
	case Double:
		return 5
	case Decimal:
		return 6
	}
	return -1
}
