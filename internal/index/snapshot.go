package index

import (
	"encoding/binary"
	"fmt"
	"math"
)

// snapshotVersion guards the on-disk layout; bump when the encoding changes.
const snapshotVersion byte = 1

// Snapshot serializes the index so a later process can restore the fast path
// without rebuilding. Layout: version byte, uint32 dimension, uint32 count,
// count int64 ids, count*dim float32 vectors, all little-endian.
func (f *Flat) Snapshot() []byte {
	buf := make([]byte, 0, 1+8+len(f.ids)*8+len(f.vectors)*4)
	buf = append(buf, snapshotVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(f.dim))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(f.ids)))
	for _, id := range f.ids {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
	}
	for _, v := range f.vectors {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// FromSnapshot restores an index from Snapshot output.
func FromSnapshot(data []byte) (*Flat, error) {
	if len(data) < 9 {
		return nil, fmt.Errorf("index snapshot: truncated header (%d bytes)", len(data))
	}
	if data[0] != snapshotVersion {
		return nil, fmt.Errorf("index snapshot: unknown version %d", data[0])
	}
	dim := int(binary.LittleEndian.Uint32(data[1:5]))
	n := int(binary.LittleEndian.Uint32(data[5:9]))

	want := 9 + n*8 + n*dim*4
	if len(data) != want {
		return nil, fmt.Errorf("index snapshot: %d bytes, want %d for %d passages of dimension %d",
			len(data), want, n, dim)
	}

	f := &Flat{dim: dim}
	if n == 0 {
		return f, nil
	}

	f.ids = make([]int64, n)
	off := 9
	for i := range f.ids {
		f.ids[i] = int64(binary.LittleEndian.Uint64(data[off:]))
		off += 8
	}
	f.vectors = make([]float32, n*dim)
	for i := range f.vectors {
		f.vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		off += 4
	}
	return f, nil
}
