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

// exactTags maps a representation to its tag when the mapping is unambiguous.
var exactTags = map[Kind]Tag{
	KindBool:     Boolean,
	KindByte:     Byte,
	KindShort:    Short,
	KindInt:      Integer,
	KindLong:     Long,
	KindFloat:    Float,
	KindDouble:   Double,
	KindDecimal:  Decimal,
	KindDateTime: DateTime,
	KindString:   String,
	KindBinary:   Binary,
	KindLinkList: LinkList,
	KindLinkSet:  LinkSet,
	KindLinkMap:  LinkMap,
	KindLinkBag:  LinkBag,
}

// inferencePriority is walked in order for representations without an exact tag.
var inferencePriority = []Tag{EmbeddedList, EmbeddedSet, EmbeddedMap, Link, Embedded, String, DateTime}

// IsTypeInstance reports if v already is in the canonical representation of t.
func (t Tag) IsTypeInstance(v Value) bool {
	if v == nil || !t.Valid() {
		return false
	}
	switch t {
	case Link:
		return isReference(v)
	case Embedded:
		e, ok := v.(*Entity)
		return ok && e.Embedded
	}
	return v.Kind() == t.Repr()
}

// IsConvertibleFrom reports if v is in the canonical representation of t or
// in one of the representations t accepts as a compatible source.
func (t Tag) IsConvertibleFrom(v Value) bool {
	if t.IsTypeInstance(v) {
		return true
	}
	if v == nil || !t.Valid() {
		return false
	}
	k := v.Kind()
	for _, c := range tags[t].compatible {
		if c == k {
			return true
		}
	}
	return false
}

// Infer returns the tag of a value. Collections and entities are resolved
// to their link or embedded variant by inspecting their items.
// It returns Invalid for nil.
func Infer(v Value) Tag {
	if v == nil {
		return Invalid
	}
	if t, ok := exactTags[v.Kind()]; ok {
		return t
	}
	for _, t := range inferencePriority {
		if t.IsConvertibleFrom(v) {
			return disambiguate(t, v)
		}
	}
	return Invalid
}

func disambiguate(t Tag, v Value) Tag {
	switch t {
	case EmbeddedList:
		if items, _ := seq(v); isLinkCollection(items) {
			return LinkList
		}
	case EmbeddedSet:
		if items, _ := seq(v); isLinkCollection(items) {
			return LinkSet
		}
	case EmbeddedMap:
		if m, _ := mapOf(v); isLinkCollection(sortedValues(m)) {
			return LinkMap
		}
	case Link:
		if e, ok := v.(*Entity); ok && e.Embedded {
			return Embedded
		}
	}
	return t
}

// isReference reports if v points to a record living outside of its owner.
func isReference(v Value) bool {
	switch v := v.(type) {
	case RecordID:
		return true
	case *Entity:
		return !v.Embedded
	}
	return false
}

// isLinkCollection reports if a collection holds at least one reference and
// nothing but references. Empty collections are embedded.
func isLinkCollection(items []Value) bool {
	found := false
	for _, it := range items {
		if it == nil {
			continue
		}
		if !isReference(it) {
			return false
		}
		found = true
	}
	return found
}

// CanBeLinkCollection reports if every item of a collection value is a
// reference. Empty collections qualify.
func CanBeLinkCollection(v Value) bool {
	items, ok := seq(v)
	if !ok {
		m, isMap := mapOf(v)
		if !isMap {
			return false
		}
		items = sortedValues(m)
	}
	for _, it := range items {
		if it != nil && !isReference(it) {
			return false
		}
	}
	return true
}
