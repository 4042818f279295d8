package semtable

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot msgpack-encodes t, for tooling that wants the tables without
// parsing Emit's Go source.
func Snapshot(t Tables) ([]byte, error) {
	return msgpack.Marshal(t)
}

// LoadSnapshot decodes a Tables previously produced by Snapshot.
func LoadSnapshot(data []byte) (Tables, error) {
	var t Tables
	if err := msgpack.Unmarshal(data, &t); err != nil {
		return Tables{}, err
	}
	return t, nil
}
