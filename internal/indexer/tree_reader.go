package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/cryptindex/internal/common"
	"github.com/dmitrijs2005/cryptindex/internal/cryptox"
	"github.com/dmitrijs2005/cryptindex/internal/index"
	"github.com/dmitrijs2005/cryptindex/internal/storage"
)

// maxTreeDepth bounds descent so a corrupt tree with a cycle terminates.
const maxTreeDepth = 64

// TreeReader reads a tree written by WriteTree.
type TreeReader struct {
	src     storage.Source
	keys    cryptox.Keys
	dialect index.Dialect
	names   Names
}

// TreeReader returns a reader for the tree stored in src, decrypting shards
// with keys.
func (x *Indexer) TreeReader(src storage.Source, keys cryptox.Keys) *TreeReader {
	return &TreeReader{src: src, keys: keys, dialect: x.dialect, names: x.names}
}

type shardDocument struct {
	Type       string                     `json:"type"`
	Files      map[string]json.RawMessage `json:"files"`
	Start      string                     `json:"start"`
	End        string                     `json:"end"`
	Child      []string                   `json:"child"`
	ChildStart []string                   `json:"child_start"`
}

func (r *TreeReader) shard(ctx context.Context, name string) (shardDocument, error) {
	plain, err := getDecrypted(ctx, r.src, r.keys, name)
	if err != nil {
		return shardDocument{}, err
	}
	var doc shardDocument
	if err := json.Unmarshal(plain, &doc); err != nil {
		return shardDocument{}, fmt.Errorf("shard %s: %w: %v", name, common.ErrMalformedManifest, err)
	}
	switch doc.Type {
	case shardLeaf:
	case shardNode:
		if len(doc.Child) == 0 || len(doc.Child) != len(doc.ChildStart) {
			return shardDocument{}, fmt.Errorf("shard %s: %w: %d children, %d starts",
				name, common.ErrMalformedManifest, len(doc.Child), len(doc.ChildStart))
		}
	default:
		return shardDocument{}, fmt.Errorf("shard %s: %w: type %q", name, common.ErrMalformedManifest, doc.Type)
	}
	return doc, nil
}

// Lookup descends from the root to the leaf that may hold name.
func (r *TreeReader) Lookup(ctx context.Context, name string) (index.Entry, bool, error) {
	cur := r.names.TreeRoot
	for depth := 0; depth < maxTreeDepth; depth++ {
		doc, err := r.shard(ctx, cur)
		if err != nil {
			return index.Entry{}, false, err
		}
		if doc.Type == shardLeaf {
			raw, ok := doc.Files[name]
			if !ok {
				return index.Entry{}, false, nil
			}
			e, err := r.dialect.Decode(raw)
			if err != nil {
				return index.Entry{}, false, fmt.Errorf("entry %q: %w", name, err)
			}
			return e, true, nil
		}
		if name < doc.Start || name > doc.End {
			return index.Entry{}, false, nil
		}
		// last child whose range starts at or before name
		i := sort.Search(len(doc.ChildStart), func(i int) bool { return doc.ChildStart[i] > name }) - 1
		if i < 0 {
			return index.Entry{}, false, nil
		}
		cur = doc.Child[i]
	}
	return index.Entry{}, false, fmt.Errorf("%w: tree deeper than %d", common.ErrMalformedManifest, maxTreeDepth)
}

// Load reads every leaf reachable from the root.
func (r *TreeReader) Load(ctx context.Context) (index.Index, error) {
	out := make(index.Index)
	if err := r.walk(ctx, r.names.TreeRoot, 0, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TreeReader) walk(ctx context.Context, name string, depth int, out index.Index) error {
	if depth >= maxTreeDepth {
		return fmt.Errorf("%w: tree deeper than %d", common.ErrMalformedManifest, maxTreeDepth)
	}
	doc, err := r.shard(ctx, name)
	if err != nil {
		return err
	}
	if doc.Type == shardLeaf {
		ix, err := index.DecodeIndex(r.dialect, doc.Files)
		if err != nil {
			return fmt.Errorf("shard %s: %w", name, err)
		}
		out.Merge(ix)
		return nil
	}
	for _, child := range doc.Child {
		if err := r.walk(ctx, child, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}

// Height returns the number of levels from the root down to the leaves.
func (r *TreeReader) Height(ctx context.Context) (int, error) {
	cur := r.names.TreeRoot
	for h := 1; h <= maxTreeDepth; h++ {
		doc, err := r.shard(ctx, cur)
		if err != nil {
			return 0, err
		}
		if doc.Type == shardLeaf {
			return h, nil
		}
		cur = doc.Child[0]
	}
	return 0, fmt.Errorf("%w: tree deeper than %d", common.ErrMalformedManifest, maxTreeDepth)
}
