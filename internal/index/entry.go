// Package index defines the file index data model: the per-file Entry, the
// name-keyed Index, their structured-document form and the two manifest
// dialects that encode them.
package index

import (
	"math/big"
	"sort"
)

// Entry describes one logical file: the ordered physical chunks that make it
// up plus its size and modification time.
//
// Nonces, when non-nil, holds one per-chunk encryption nonce for each chunk.
// A nil Nonces means the dialect does not track them (all chunks use zero).
type Entry struct {
	Chunks       []string
	Nonces       []*big.Int
	SplitSize    int
	LastModified int64
	Size         int64
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	out := e
	if e.Chunks != nil {
		out.Chunks = append([]string(nil), e.Chunks...)
	}
	if e.Nonces != nil {
		out.Nonces = make([]*big.Int, len(e.Nonces))
		for i, n := range e.Nonces {
			out.Nonces[i] = new(big.Int).Set(nonceOrZero(n))
		}
	}
	return out
}

// Equal reports field-by-field equality. Nonces compare numerically and a
// nil nonce list equals an empty one.
func (e Entry) Equal(o Entry) bool {
	if e.SplitSize != o.SplitSize || e.LastModified != o.LastModified || e.Size != o.Size {
		return false
	}
	if len(e.Chunks) != len(o.Chunks) || len(e.Nonces) != len(o.Nonces) {
		return false
	}
	for i := range e.Chunks {
		if e.Chunks[i] != o.Chunks[i] {
			return false
		}
	}
	for i := range e.Nonces {
		if nonceOrZero(e.Nonces[i]).Cmp(nonceOrZero(o.Nonces[i])) != 0 {
			return false
		}
	}
	return true
}

// WithChunks returns a copy of e whose chunk locations are replaced by
// mapping fn over the originals. Nonces are kept in step.
func (e Entry) WithChunks(fn func(chunk string) string) Entry {
	out := e.Clone()
	for i, c := range out.Chunks {
		out.Chunks[i] = fn(c)
	}
	return out
}

// ZeroNonces returns n zero-valued nonces.
func ZeroNonces(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = new(big.Int)
	}
	return out
}

func nonceOrZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}

// Index maps logical file names to their entries. Writes to an existing
// name replace the previous entry.
type Index map[string]Entry

// Names returns every logical name in lexicographic order.
func (ix Index) Names() []string {
	names := make([]string, 0, len(ix))
	for name := range ix {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge copies every entry of other into ix, overwriting same-named ones.
func (ix Index) Merge(other Index) {
	for name, e := range other {
		ix[name] = e.Clone()
	}
}
