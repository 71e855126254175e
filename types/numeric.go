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
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrNotComparable is returned when two values have no common ordering.
var ErrNotComparable = errors.New("types: values are not comparable")

func numberTag(v Value) Tag {
	switch kindOf(v) {
	case KindByte:
		return Byte
	case KindShort:
		return Short
	case KindInt:
		return Integer
	case KindLong:
		return Long
	case KindFloat:
		return Float
	case KindDouble:
		return Double
	case KindDecimal:
		return Decimal
	}
	return Invalid
}

// Promote converts two numbers to the wider of their tags following
// BYTE < SHORT < INTEGER < LONG < FLOAT < DOUBLE < DECIMAL. Two decimals
// are aligned to the larger of their scales.
func Promote(a, b Value) (Value, Value, error) {
	if a == nil || b == nil {
		return nil, nil, errors.Wrapf(ErrNotComparable, "null operand")
	}
	ta, tb := numberTag(a), numberTag(b)
	if !ta.Valid() || !tb.Valid() {
		return nil, nil, errors.Wrapf(ErrNotComparable, "%s and %s", a.Kind(), b.Kind())
	}
	t := ta
	if tb.numericRank() > ta.numericRank() {
		t = tb
	}
	pa, err := DefaultConverter.Convert(a, t, Invalid, "")
	if err != nil {
		return nil, nil, err
	}
	pb, err := DefaultConverter.Convert(b, t, Invalid, "")
	if err != nil {
		return nil, nil, err
	}
	if t == Decimal {
		da, db := pa.(*Dec), pb.(*Dec)
		exp := da.Exponent
		if db.Exponent < exp {
			exp = db.Exponent
		}
		if pa, err = rescale(da, exp); err != nil {
			return nil, nil, err
		}
		if pb, err = rescale(db, exp); err != nil {
			return nil, nil, err
		}
	}
	return pa, pb, nil
}

func rescale(d *Dec, exp int32) (*Dec, error) {
	if d.Exponent == exp {
		return d, nil
	}
	out := new(Dec)
	if _, err := decimalCtx.Quantize(&out.Decimal, &d.Decimal, exp); err != nil {
		return nil, err
	}
	return out, nil
}

// Increment adds two numbers. An integer sum that does not fit the width
// of its operands is returned with the next wider tag instead of wrapping;
// LONG overflows into DECIMAL.
func Increment(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int8:
		if y, ok := b.(Int8); ok {
			s := int64(x) + int64(y)
			if s > math.MaxInt8 || s < math.MinInt8 {
				return Int16(s), nil
			}
			return Int8(s), nil
		}
	case Int16:
		if y, ok := b.(Int16); ok {
			s := int64(x) + int64(y)
			if s > math.MaxInt16 || s < math.MinInt16 {
				return Int32(s), nil
			}
			return Int16(s), nil
		}
	case Int32:
		if y, ok := b.(Int32); ok {
			s := int64(x) + int64(y)
			if s > math.MaxInt32 || s < math.MinInt32 {
				return Int64(s), nil
			}
			return Int32(s), nil
		}
	case Int64:
		if y, ok := b.(Int64); ok {
			if (y > 0 && x > math.MaxInt64-y) || (y < 0 && x < math.MinInt64-y) {
				return addDecimals(DecimalFromInt(int64(x)), DecimalFromInt(int64(y)))
			}
			return x + y, nil
		}
	case Float32:
		if y, ok := b.(Float32); ok {
			return x + y, nil
		}
	case Float64:
		if y, ok := b.(Float64); ok {
			return x + y, nil
		}
	case *Dec:
		if y, ok := b.(*Dec); ok {
			return addDecimals(x, y)
		}
	}
	pa, pb, err := Promote(a, b)
	if err != nil {
		return nil, err
	}
	if pa.Kind() == a.Kind() && pb.Kind() == b.Kind() {
		return nil, errors.Wrapf(ErrNotComparable, "cannot add %s and %s", a.Kind(), b.Kind())
	}
	return Increment(pa, pb)
}

func addDecimals(a, b *Dec) (Value, error) {
	out := new(Dec)
	if _, err := decimalCtx.Add(&out.Decimal, &a.Decimal, &b.Decimal); err != nil {
		return nil, err
	}
	return out, nil
}

// Compare orders two values of compatible kinds: numbers (after Promote),
// strings, booleans and dates.
func Compare(a, b Value) (int, error) {
	if numberTag(a).Valid() && numberTag(b).Valid() {
		pa, pb, err := Promote(a, b)
		if err != nil {
			return 0, err
		}
		switch x := pa.(type) {
		case *Dec:
			return x.Cmp(&pb.(*Dec).Decimal), nil
		case Float32, Float64:
			fa, _ := toFloat64(pa)
			fb, _ := toFloat64(pb)
			return cmpFloat(fa, fb), nil
		}
		ia, _ := truncInt(pa)
		ib, _ := truncInt(pb)
		return cmpInt(ia, ib), nil
	}
	switch x := a.(type) {
	case Text:
		if y, ok := b.(Text); ok {
			return strings.Compare(string(x), string(y)), nil
		}
	case Bool:
		if y, ok := b.(Bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !bool(x):
				return -1, nil
			}
			return 1, nil
		}
	case Time:
		if y, ok := b.(Time); ok {
			switch {
			case x.Before(y.Time):
				return -1, nil
			case x.After(y.Time):
				return 1, nil
			}
			return 0, nil
		}
	}
	return 0, errors.Wrapf(ErrNotComparable, "%s and %s", kindOf(a), kindOf(b))
}

func kindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
