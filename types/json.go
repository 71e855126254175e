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
	"encoding/json"
	"fmt"
)

// ClassField is the JSON object key holding the class of an entity.
const ClassField = "@class"

// ToJSON encodes a value as plain JSON. Entities become objects with a
// ClassField key, references become their text form.
func ToJSON(v Value) ([]byte, error) {
	return json.Marshal(plain(v))
}

func plain(v Value) interface{} {
	switch v := v.(type) {
	case nil:
		return nil
	case Bool:
		return bool(v)
	case Int8, Int16, Int32, Int64:
		n, _ := truncInt(v)
		return n
	case Float32:
		return float64(v)
	case Float64:
		return float64(v)
	case *Dec:
		return json.RawMessage(v.Text('f'))
	case Time:
		return v.UnixMilli()
	case Text:
		return string(v)
	case Bytes:
		return []byte(v)
	case RecordID:
		return v.String()
	case *Entity:
		if !v.Embedded {
			return v.ID.String()
		}
		m := make(map[string]interface{}, len(v.Fields)+1)
		for k, f := range v.Fields {
			m[k] = plain(f)
		}
		if v.Class != "" {
			m[ClassField] = v.Class
		}
		return m
	}
	if items, ok := seq(v); ok {
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = plain(it)
		}
		return out
	}
	if m, ok := mapOf(v); ok {
		out := make(map[string]interface{}, len(m))
		for k, it := range m {
			out[k] = plain(it)
		}
		return out
	}
	return nil
}

// FromJSON decodes plain JSON. Objects with a ClassField key become
// embedded entities, other objects become maps, arrays become lists,
// integral numbers become LONG and other numbers DOUBLE.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromPlain(raw)
}

func fromPlain(raw interface{}) (Value, error) {
	switch r := raw.(type) {
	case nil:
		return nil, nil
	case bool:
		return Bool(r), nil
	case string:
		return Text(r), nil
	case json.Number:
		if n, err := r.Int64(); err == nil {
			return Int64(n), nil
		}
		f, err := r.Float64()
		if err != nil {
			return nil, err
		}
		return Float64(f), nil
	case []interface{}:
		out := make(List, 0, len(r))
		for _, it := range r {
			v, err := fromPlain(it)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(r))
		class, hasClass := r[ClassField].(string)
		for k, it := range r {
			if k == ClassField && hasClass {
				continue
			}
			v, err := fromPlain(it)
			if err != nil {
				return nil, err
			}
			fields[k] = v
		}
		if hasClass {
			return NewEntity(class, fields), nil
		}
		return Map(fields), nil
	}
	return nil, fmt.Errorf("types: unexpected json value %T", raw)
}

// tagged is the lossless JSON form of a value.
type tagged struct {
	K string          `json:"k"`
	V json.RawMessage `json:"v,omitempty"`
}

type taggedEntity struct {
	ID       RecordID                   `json:"id"`
	Class    string                     `json:"class,omitempty"`
	Embedded bool                       `json:"embedded,omitempty"`
	Fields   map[string]json.RawMessage `json:"fields,omitempty"`
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = Kind(k)
	}
	return m
}()

// MarshalValue encodes a value as JSON keeping its exact representation.
func MarshalValue(v Value) ([]byte, error) {
	if v == nil {
		return json.Marshal(tagged{K: KindNull.String()})
	}
	var (
		payload interface{}
		err     error
	)
	switch x := v.(type) {
	case *Dec:
		payload = x.Text('E')
	case Time:
		payload = x.UnixMilli()
	case Text:
		payload = string(x)
	case Bytes:
		payload = []byte(x)
	case *Entity:
		te := taggedEntity{ID: x.ID, Class: x.Class, Embedded: x.Embedded}
		if x.Embedded || !x.ID.IsPersistent() {
			if te.Fields, err = marshalMap(x.Fields); err != nil {
				return nil, err
			}
		}
		payload = te
	case Map:
		payload, err = marshalMap(x)
	case RefMap:
		payload, err = marshalMap(x)
	default:
		if items, ok := seq(v); ok {
			out := make([]json.RawMessage, len(items))
			for i, it := range items {
				if out[i], err = MarshalValue(it); err != nil {
					return nil, err
				}
			}
			payload = out
		} else {
			payload = v
		}
	}
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tagged{K: v.Kind().String(), V: data})
}

func marshalMap(m map[string]Value) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(m))
	for k, it := range m {
		data, err := MarshalValue(it)
		if err != nil {
			return nil, err
		}
		out[k] = data
	}
	return out, nil
}

// UnmarshalValue decodes a value encoded by MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	var t tagged
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	k, ok := kindsByName[t.K]
	if !ok {
		return nil, fmt.Errorf("types: unknown value kind %q", t.K)
	}
	if k == KindNull {
		return nil, nil
	}
	dec := func(dst interface{}) error {
		d := json.NewDecoder(bytes.NewReader(t.V))
		d.UseNumber()
		return d.Decode(dst)
	}
	var n json.Number
	switch k {
	case KindBool:
		var b bool
		err := dec(&b)
		return Bool(b), err
	case KindByte, KindShort, KindInt, KindLong:
		if err := dec(&n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, err
		}
		switch k {
		case KindByte:
			return Int8(i), nil
		case KindShort:
			return Int16(i), nil
		case KindInt:
			return Int32(i), nil
		}
		return Int64(i), nil
	case KindFloat, KindDouble:
		if err := dec(&n); err != nil {
			return nil, err
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		if k == KindFloat {
			return Float32(f), nil
		}
		return Float64(f), nil
	case KindDecimal:
		var s string
		if err := dec(&s); err != nil {
			return nil, err
		}
		return NewDecimal(s)
	case KindDateTime:
		var ms int64
		err := dec(&ms)
		return Millis(ms), err
	case KindString:
		var s string
		err := dec(&s)
		return Text(s), err
	case KindBinary:
		var b []byte
		err := dec(&b)
		return Bytes(b), err
	case KindRecordID:
		var id RecordID
		err := dec(&id)
		return id, err
	case KindEntity:
		var te taggedEntity
		if err := dec(&te); err != nil {
			return nil, err
		}
		fields, err := unmarshalMap(te.Fields)
		if err != nil {
			return nil, err
		}
		return &Entity{ID: te.ID, Class: te.Class, Embedded: te.Embedded, Fields: fields}, nil
	case KindMap, KindLinkMap:
		var raw map[string]json.RawMessage
		if err := dec(&raw); err != nil {
			return nil, err
		}
		m, err := unmarshalMap(raw)
		if err != nil {
			return nil, err
		}
		if k == KindLinkMap {
			return RefMap(m), nil
		}
		return Map(m), nil
	}
	var raw []json.RawMessage
	if err := dec(&raw); err != nil {
		return nil, err
	}
	items := make([]Value, len(raw))
	for i, r := range raw {
		v, err := UnmarshalValue(r)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	switch k {
	case KindList:
		return List(items), nil
	case KindSet:
		return Set(items), nil
	case KindLinkList:
		return RefList(items), nil
	case KindLinkSet:
		return RefSet(items), nil
	case KindLinkBag:
		return RefBag(items), nil
	}
	return nil, fmt.Errorf("types: cannot decode kind %s", k)
}

func unmarshalMap(raw map[string]json.RawMessage) (map[string]Value, error) {
	out := make(map[string]Value, len(raw))
	for k, r := range raw {
		v, err := UnmarshalValue(r)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
