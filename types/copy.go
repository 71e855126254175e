package types

// Copy returns a deep copy of v. Embedded entities and collections are
// duplicated; references to other records keep pointing at the same record.
func Copy(v Value) Value {
	switch x := v.(type) {
	case Bytes:
		return append(Bytes(nil), x...)
	case *Dec:
		d := new(Dec)
		d.Set(&x.Decimal)
		return d
	case *Entity:
		if !x.Embedded {
			return x
		}
		return &Entity{ID: x.ID, Class: x.Class, Embedded: true, Fields: copyMap(x.Fields)}
	case List:
		return List(copySeq(x))
	case Set:
		return Set(copySeq(x))
	case RefList:
		return RefList(copySeq(x))
	case RefSet:
		return RefSet(copySeq(x))
	case RefBag:
		return RefBag(copySeq(x))
	case Map:
		return Map(copyMap(x))
	case RefMap:
		return RefMap(copyMap(x))
	}
	return v
}

func copySeq(items []Value) []Value {
	if items == nil {
		return nil
	}
	out := make([]Value, len(items))
	for i, it := range items {
		out[i] = Copy(it)
	}
	return out
}

func copyMap(m map[string]Value) map[string]Value {
	if m == nil {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, it := range m {
		out[k] = Copy(it)
	}
	return out
}
