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
	"encoding/base64"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/knz/strtime"
)

const (
	// DefaultDateTimeFormat is the strftime layout used to parse and print datetime text.
	DefaultDateTimeFormat = "%Y-%m-%d %H:%M:%S"
	// DefaultDateFormat is the strftime layout used to parse and print date text.
	DefaultDateFormat = "%Y-%m-%d"
)

// Converter coerces values into the canonical representation of a tag.
// Its zero value uses the default formats in UTC.
type Converter struct {
	DateTimeFormat string
	DateFormat     string
	Location       *time.Location
}

// DefaultConverter is used by the Tag methods.
var DefaultConverter = &Converter{
	DateTimeFormat: DefaultDateTimeFormat,
	DateFormat:     DefaultDateFormat,
	Location:       time.UTC,
}

var decimalCtx = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(100)
	c.Rounding = apd.RoundDown
	return c
}()

// Convert converts v to the canonical representation of t using the
// default converter.
func (t Tag) Convert(v Value, linkedType Tag, linkedClass string) (Value, error) {
	return DefaultConverter.Convert(v, t, linkedType, linkedClass)
}

// Copy deep-copies a value of this tag. Scalar tags convert instead.
func (t Tag) Copy(v Value) (Value, error) {
	if t.IsMultiValue() || t == Embedded || t == Binary || t == Decimal {
		return Copy(v), nil
	}
	return t.Convert(v, Invalid, "")
}

func (c *Converter) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c *Converter) dateTimeFormat() string {
	if c.DateTimeFormat == "" {
		return DefaultDateTimeFormat
	}
	return c.DateTimeFormat
}

func (c *Converter) dateFormat() string {
	if c.DateFormat == "" {
		return DefaultDateFormat
	}
	return c.DateFormat
}

// Convert converts v to the canonical representation of tag t.
// A nil value converts to nil for every tag.
func (c *Converter) Convert(v Value, t Tag, linkedType Tag, linkedClass string) (Value, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case Boolean:
		return c.toBool(v)
	case Byte, Short, Integer, Long:
		return c.toInteger(v, t)
	case Float:
		return c.toFloat(v)
	case Double:
		return c.toDouble(v)
	case Decimal:
		return c.toDecimal(v)
	case DateTime:
		return c.toDateTime(v)
	case Date:
		d, err := c.toDateTime(v)
		if err != nil {
			return nil, conversionErr(v, Date, err)
		}
		return c.truncateDay(d), nil
	case String:
		return c.toString(v), nil
	case Binary:
		return c.toBinary(v)
	case Embedded:
		return c.toEmbedded(v, linkedClass)
	case EmbeddedList:
		items, err := c.toEmbeddedItems(v, EmbeddedList, linkedType, linkedClass)
		if err != nil {
			return nil, err
		}
		return List(items), nil
	case EmbeddedSet:
		items, err := c.toEmbeddedItems(v, EmbeddedSet, linkedType, linkedClass)
		if err != nil {
			return nil, err
		}
		return Set(distinct(items)), nil
	case EmbeddedMap:
		return c.toEmbeddedMap(v, linkedType, linkedClass)
	case Link:
		return c.toLink(v, linkedClass)
	case LinkList:
		items, err := c.toLinks(v, LinkList, linkedClass)
		if err != nil {
			return nil, err
		}
		return RefList(items), nil
	case LinkSet:
		items, err := c.toLinks(v, LinkSet, linkedClass)
		if err != nil {
			return nil, err
		}
		return RefSet(distinct(items)), nil
	case LinkMap:
		return c.toLinkMap(v, linkedClass)
	case LinkBag:
		return c.toLinkBag(v)
	}
	return nil, conversionErrf(v, t, "unsupported type")
}

func (c *Converter) toBool(v Value) (Value, error) {
	switch v := v.(type) {
	case Bool:
		return v, nil
	case Text:
		return Bool(strings.EqualFold(string(v), "true")), nil
	}
	if n, ok := truncInt(v); ok {
		return Bool(n != 0), nil
	}
	return nil, conversionErrf(v, Boolean, "cannot convert %s to boolean", v.Kind())
}

// truncInt returns the integer part of a number value.
func truncInt(v Value) (int64, bool) {
	switch v := v.(type) {
	case Bool:
		if v {
			return 1, true
		}
		return 0, true
	case Int8:
		return int64(v), true
	case Int16:
		return int64(v), true
	case Int32:
		return int64(v), true
	case Int64:
		return int64(v), true
	case Float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	case Float64:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	case *Dec:
		var d apd.Decimal
		if _, err := decimalCtx.Quantize(&d, &v.Decimal, 0); err != nil {
			return 0, false
		}
		n, err := d.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// toFloat64 returns the float value of a number value.
func toFloat64(v Value) (float64, bool) {
	switch v := v.(type) {
	case Float32:
		return float64(v), true
	case Float64:
		return float64(v), true
	case *Dec:
		f, err := v.Float64()
		return f, err == nil
	}
	n, ok := truncInt(v)
	return float64(n), ok
}

var intBits = map[Tag]int{Byte: 8, Short: 16, Integer: 32, Long: 64}

func (c *Converter) toInteger(v Value, t Tag) (Value, error) {
	if v.Kind() == t.Repr() {
		return v, nil
	}
	bits := intBits[t]
	var n int64
	switch x := v.(type) {
	case Text:
		if x == "" && t == Integer {
			return nil, nil
		}
		var err error
		n, err = strconv.ParseInt(string(x), 10, bits)
		if err != nil {
			return nil, conversionErr(v, t, err)
		}
	case Time:
		if t != Long {
			return nil, conversionErrf(v, t, "cannot convert %s to %s", v.Kind(), t)
		}
		return Int64(x.UnixMilli()), nil
	default:
		var ok bool
		n, ok = truncInt(v)
		if !ok {
			return nil, conversionErrf(v, t, "cannot convert %s to %s", v.Kind(), t)
		}
		if bits < 64 && (n > 1<<(bits-1)-1 || n < -(1<<(bits-1))) {
			return nil, conversionErrf(v, t, "value out of range")
		}
	}
	switch t {
	case Byte:
		return Int8(n), nil
	case Short:
		return Int16(n), nil
	case Integer:
		return Int32(n), nil
	}
	return Int64(n), nil
}

func (c *Converter) toFloat(v Value) (Value, error) {
	switch x := v.(type) {
	case Float32:
		return x, nil
	case Text:
		f, err := strconv.ParseFloat(string(x), 32)
		if err != nil {
			return nil, conversionErr(v, Float, err)
		}
		return Float32(f), nil
	}
	f, ok := toFloat64(v)
	if !ok {
		return nil, conversionErrf(v, Float, "cannot convert %s to FLOAT", v.Kind())
	}
	return Float32(f), nil
}

func (c *Converter) toDouble(v Value) (Value, error) {
	switch x := v.(type) {
	case Float64:
		return x, nil
	case Float32:
		// go through the shortest text form, so 0.1f becomes 0.1
		f, _ := strconv.ParseFloat(strconv.FormatFloat(float64(x), 'g', -1, 32), 64)
		return Float64(f), nil
	case Text:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return nil, conversionErr(v, Double, err)
		}
		return Float64(f), nil
	}
	f, ok := toFloat64(v)
	if !ok {
		return nil, conversionErrf(v, Double, "cannot convert %s to DOUBLE", v.Kind())
	}
	return Float64(f), nil
}

func (c *Converter) toDecimal(v Value) (Value, error) {
	switch x := v.(type) {
	case *Dec:
		return x, nil
	case Text:
		d, err := NewDecimal(string(x))
		if err != nil {
			return nil, conversionErr(v, Decimal, err)
		}
		return d, nil
	case Float32:
		d, err := NewDecimal(strconv.FormatFloat(float64(x), 'g', -1, 32))
		if err != nil {
			return nil, conversionErr(v, Decimal, err)
		}
		return d, nil
	case Float64:
		d := new(Dec)
		if _, err := d.SetFloat64(float64(x)); err != nil {
			return nil, conversionErr(v, Decimal, err)
		}
		return d, nil
	}
	n, ok := truncInt(v)
	if !ok {
		return nil, conversionErrf(v, Decimal, "cannot convert %s to DECIMAL", v.Kind())
	}
	return DecimalFromInt(n), nil
}

func (c *Converter) toDateTime(v Value) (Time, error) {
	switch x := v.(type) {
	case Time:
		return Time{Time: x.Truncate(time.Millisecond)}, nil
	case Text:
		s := string(x)
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Millis(ms), nil
		}
		if t, err := c.ParseTime(s, c.dateTimeFormat()); err == nil {
			return Time{Time: t}, nil
		}
		if t, err := c.ParseTime(s, c.dateFormat()); err == nil {
			return Time{Time: t}, nil
		}
		return Time{}, conversionErrf(v, DateTime, "text does not match %q or %q", c.dateTimeFormat(), c.dateFormat())
	}
	if n, ok := truncInt(v); ok && v.Kind() != KindBool {
		return Millis(n), nil
	}
	return Time{}, conversionErrf(v, DateTime, "cannot convert %s to DATETIME", v.Kind())
}

// ParseTime parses text with a strftime layout in the converter location.
func (c *Converter) ParseTime(s, layout string) (time.Time, error) {
	t, err := strtime.Strptime(s, layout)
	if err != nil {
		return time.Time{}, conversionErr(Text(s), DateTime, err)
	}
	// a mismatch can come back as a zero time without an error
	if t.IsZero() {
		return time.Time{}, conversionErrf(Text(s), DateTime, "text does not match %q", layout)
	}
	if loc := c.loc(); loc != time.UTC {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	}
	return t.Truncate(time.Millisecond), nil
}

// FormatTime prints a time with the datetime layout in the converter location.
func (c *Converter) FormatTime(t time.Time) string {
	s, err := strtime.Strftime(t.In(c.loc()), c.dateTimeFormat())
	if err != nil {
		return t.Format(time.RFC3339Nano)
	}
	return s
}

func (c *Converter) truncateDay(d Time) Time {
	t := d.In(c.loc())
	return Time{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc())}
}

func (c *Converter) toString(v Value) Value {
	if s, ok := v.(Text); ok {
		return s
	}
	if items, ok := seq(v); ok && len(items) == 1 {
		if s, ok := items[0].(Text); ok {
			return s
		}
	}
	return Text(c.Stringify(v))
}

func (c *Converter) toBinary(v Value) (Value, error) {
	switch x := v.(type) {
	case Bytes:
		return x, nil
	case Text:
		b, err := base64.StdEncoding.DecodeString(string(x))
		if err != nil {
			return nil, conversionErr(v, Binary, err)
		}
		return Bytes(b), nil
	}
	return nil, conversionErrf(v, Binary, "cannot convert %s to BINARY", v.Kind())
}

func (c *Converter) toEmbedded(v Value, linkedClass string) (Value, error) {
	switch x := v.(type) {
	case *Entity:
		return x, nil
	case Map:
		fields := make(map[string]Value, len(x))
		for k, f := range x {
			fields[k] = f
		}
		return NewEntity(linkedClass, fields), nil
	case Text:
		parsed, err := FromJSON([]byte(x))
		if err != nil {
			return nil, conversionErr(v, Embedded, err)
		}
		switch p := parsed.(type) {
		case *Entity:
			if p.Class == "" {
				p.Class = linkedClass
			}
			return p, nil
		case Map:
			return NewEntity(linkedClass, p), nil
		}
		return nil, conversionErrf(v, Embedded, "json text is not an object")
	}
	return nil, conversionErrf(v, Embedded, "cannot convert %s to EMBEDDED", v.Kind())
}

func (c *Converter) convertItem(item Value, coll Tag, linkedType Tag, linkedClass string) (Value, error) {
	if item == nil {
		return nil, nil
	}
	if linkedClass != "" {
		switch item.(type) {
		case Map, *Entity, Text:
			return c.Convert(item, Embedded, Invalid, linkedClass)
		}
	}
	if linkedType.Valid() {
		return c.Convert(item, linkedType, Invalid, "")
	}
	t := Infer(item)
	if !t.Valid() {
		return nil, conversionErrf(item, coll, "cannot determine the type of a collection item")
	}
	return c.Convert(item, t, Invalid, "")
}

func (c *Converter) toEmbeddedItems(v Value, coll Tag, linkedType Tag, linkedClass string) ([]Value, error) {
	items, ok := seq(v)
	if !ok {
		items = []Value{v}
	}
	out := make([]Value, 0, len(items))
	for _, it := range items {
		cv, err := c.convertItem(it, coll, linkedType, linkedClass)
		if err != nil {
			return nil, conversionErr(v, coll, err)
		}
		out = append(out, cv)
	}
	return out, nil
}

func (c *Converter) toEmbeddedMap(v Value, linkedType Tag, linkedClass string) (Value, error) {
	out := make(Map)
	put := func(m map[string]Value) error {
		for k, it := range m {
			cv, err := c.convertItem(it, EmbeddedMap, linkedType, linkedClass)
			if err != nil {
				return conversionErr(v, EmbeddedMap, err)
			}
			out[k] = cv
		}
		return nil
	}
	if m, ok := mapOf(v); ok {
		return out, put(m)
	}
	if e, ok := v.(*Entity); ok && e.Embedded {
		return out, put(e.Fields)
	}
	if items, ok := seq(v); ok {
		for _, it := range items {
			m, ok := mapOf(it)
			if !ok {
				return nil, conversionErrf(v, EmbeddedMap, "collection item %s is not a map", Stringify(it))
			}
			if err := put(m); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return out, put(map[string]Value{"value": v})
}

func (c *Converter) toLink(v Value, linkedClass string) (Value, error) {
	switch x := v.(type) {
	case RecordID:
		return x, nil
	case *Entity:
		return x, nil
	case Text:
		id, err := ParseRecordID(string(x))
		if err != nil {
			return nil, conversionErr(v, Link, err)
		}
		return id, nil
	}
	if items, ok := seq(v); ok {
		switch len(items) {
		case 0:
			return nil, nil
		case 1:
			return c.toLink(items[0], linkedClass)
		}
		return nil, conversionErrf(v, Link, "collection has %d items", len(items))
	}
	if m, ok := mapOf(v); ok && linkedClass != "" {
		fields := make(map[string]Value, len(m))
		for k, f := range m {
			fields[k] = f
		}
		return &Entity{ID: NewRecordID, Class: linkedClass, Fields: fields}, nil
	}
	return nil, conversionErrf(v, Link, "cannot convert %s to LINK", v.Kind())
}

func (c *Converter) toLinks(v Value, coll Tag, linkedClass string) ([]Value, error) {
	items, ok := seq(v)
	if !ok {
		if m, isMap := mapOf(v); isMap {
			items = sortedValues(m)
		} else {
			items = []Value{v}
		}
	}
	out := make([]Value, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		l, err := c.toLink(it, linkedClass)
		if err != nil {
			return nil, conversionErr(v, coll, err)
		} else if l != nil {
			out = append(out, l)
		}
	}
	return out, nil
}

func (c *Converter) toLinkMap(v Value, linkedClass string) (Value, error) {
	m, ok := mapOf(v)
	if !ok {
		m = map[string]Value{"value": v}
	}
	out := make(RefMap, len(m))
	for k, it := range m {
		l, err := c.toLink(it, linkedClass)
		if err != nil {
			return nil, conversionErr(v, LinkMap, err)
		}
		out[k] = l
	}
	return out, nil
}

func (c *Converter) toLinkBag(v Value) (Value, error) {
	if id, ok := v.(Identifiable); ok {
		if e, isEnt := v.(*Entity); !isEnt || !e.Embedded {
			return RefBag{id}, nil
		}
	}
	items, ok := seq(v)
	if !ok {
		return nil, conversionErrf(v, LinkBag, "cannot convert %s to LINKBAG", v.Kind())
	}
	out := make(RefBag, 0, len(items))
	for _, it := range items {
		id, ok := it.(Identifiable)
		if e, isEnt := it.(*Entity); !ok || (isEnt && e.Embedded) {
			return nil, conversionErrf(v, LinkBag, "item %s is not a record reference", Stringify(it))
		}
		out = append(out, id)
	}
	return out, nil
}

func sortedValues(m map[string]Value) []Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Value, 0, len(m))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func distinct(items []Value) []Value {
	out := items[:0:0]
loop:
	for _, it := range items {
		for _, o := range out {
			if Equal(it, o) {
				continue loop
			}
		}
		out = append(out, it)
	}
	return out
}
