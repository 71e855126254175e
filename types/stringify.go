package types

import (
	"encoding/base64"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Stringify returns the generic text form of a value, as used by STRING conversion.
func Stringify(v Value) string {
	return DefaultConverter.Stringify(v)
}

// Stringify returns the generic text form of a value. Dates use the
// converter datetime layout.
func (c *Converter) Stringify(v Value) string {
	var sb strings.Builder
	c.writeString(&sb, v)
	return sb.String()
}

func (c *Converter) writeString(sb *strings.Builder, v Value) {
	switch v := v.(type) {
	case nil:
		sb.WriteString("null")
	case Bool:
		sb.WriteString(strconv.FormatBool(bool(v)))
	case Int8:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case Int16:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case Int32:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case Int64:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case Float32:
		sb.WriteString(formatFloat(float64(v), 32))
	case Float64:
		sb.WriteString(formatFloat(float64(v), 64))
	case *Dec:
		sb.WriteString(v.Text('f'))
	case Time:
		sb.WriteString(c.FormatTime(v.Time))
	case Text:
		sb.WriteString(string(v))
	case Bytes:
		sb.WriteString(base64.StdEncoding.EncodeToString(v))
	case RecordID:
		sb.WriteString(v.String())
	case *Entity:
		if !v.Embedded {
			sb.WriteString(v.ID.String())
			return
		}
		data, err := ToJSON(v)
		if err != nil {
			sb.WriteString(v.Class)
			return
		}
		sb.Write(data)
	case Map:
		c.writeMap(sb, v)
	case RefMap:
		c.writeMap(sb, v)
	default:
		items, _ := seq(v)
		sb.WriteByte('[')
		for i, it := range items {
			if i > 0 {
				sb.WriteString(", ")
			}
			c.writeString(sb, it)
		}
		sb.WriteByte(']')
	}
}

func (c *Converter) writeMap(sb *strings.Builder, m map[string]Value) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		c.writeString(sb, m[k])
	}
	sb.WriteByte('}')
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
