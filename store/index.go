package store

import (
	"bytes"

	"github.com/cayleygraph/catalog/types"
)

// IndexKey returns the key of a record in an index. Records with all
// indexed fields null are not indexed and return false.
func IndexKey(def IndexDefinition, rec *Record) ([]byte, bool, error) {
	var (
		buf  bytes.Buffer
		null = true
	)
	for i, f := range def.Fields {
		v := rec.Fields[f]
		if v != nil {
			null = false
		}
		data, err := types.MarshalValue(v)
		if err != nil {
			return nil, false, err
		}
		if i > 0 {
			buf.WriteByte(0)
		}
		buf.Write(data)
	}
	if null {
		return nil, false, nil
	}
	return buf.Bytes(), true, nil
}
