package indexer

import (
	"math/big"
	"regexp"
	"sort"

	"github.com/dmitrijs2005/cryptindex/internal/index"
)

// splitPiece matches "<base>.<seq>.split"; seq is fixed width, so sorting
// the full names of one base orders the pieces.
var splitPiece = regexp.MustCompile(`^(.+)\.(\d+)\.split$`)

// JoinSplits coalesces split pieces into one entry per base name and
// returns the number of logical files produced. Chunks (and nonces, when
// every piece tracks them) are concatenated in piece order, sizes are
// summed and the first piece supplies LastModified and SplitSize.
func (x *Indexer) JoinSplits() int {
	groups := make(map[string][]string)
	for name := range x.index {
		m := splitPiece.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		groups[m[1]] = append(groups[m[1]], name)
	}

	for base, pieces := range groups {
		sort.Strings(pieces)

		first := x.index[pieces[0]]
		joined := index.Entry{
			SplitSize:    first.SplitSize,
			LastModified: first.LastModified,
		}
		withNonces := true
		for _, p := range pieces {
			if x.index[p].Nonces == nil {
				withNonces = false
			}
		}
		if withNonces {
			joined.Nonces = []*big.Int{}
		}

		for _, p := range pieces {
			e := x.index[p].Clone()
			joined.Chunks = append(joined.Chunks, e.Chunks...)
			if withNonces {
				joined.Nonces = append(joined.Nonces, e.Nonces...)
			}
			joined.Size += e.Size
		}

		for _, p := range pieces {
			delete(x.index, p)
		}
		x.index[base] = joined
	}
	return len(groups)
}
