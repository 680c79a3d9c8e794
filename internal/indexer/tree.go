package indexer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/cryptindex/internal/common"
	"github.com/dmitrijs2005/cryptindex/internal/index"
	"github.com/dmitrijs2005/cryptindex/internal/storage"
)

// fanout is the number of entries per leaf and children per node.
const fanout = 10

const (
	shardLeaf = "leaf"
	shardNode = "node"
)

type leafDocument struct {
	Files map[string]index.Document `json:"files"`
	Type  string                    `json:"type"`
}

type nodeDocument struct {
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Child      []string `json:"child"`
	ChildStart []string `json:"child_start"`
	Type       string   `json:"type"`
}

// treeNode is the coverage range of one shard during construction.
type treeNode struct {
	name  string
	start string
	end   string
}

type shard struct {
	name string
	body []byte
}

// TreeStats summarises a built tree.
type TreeStats struct {
	Leaves int
	Nodes  int // internal nodes, root included when it is not a leaf
	Height int
}

// WriteTree writes the index as a sorted search tree of encrypted shards,
// leaving a hierarchical placeholder under the finalized manifest name.
//
// The whole tree is built and checked in memory first; a consistency fault
// aborts before anything is written. With clean set, every shard listed by
// the previous tree is deleted before the new one is written. Stores that
// support batches receive all writes in one batch.
func (x *Indexer) WriteTree(ctx context.Context, st storage.Store, clean bool) (TreeStats, error) {
	shards, stats, err := x.buildTree()
	if err != nil {
		return TreeStats{}, err
	}

	names := make([]string, len(shards))
	for i, s := range shards {
		names[i] = s.name
	}
	list, err := json.Marshal(names)
	if err != nil {
		return TreeStats{}, fmt.Errorf("encode shard list: %w", err)
	}
	placeholder, err := json.Marshal(flatDocument{
		Files:        map[string]index.Document{},
		Meta:         map[string]string{"hierarchical": "true"},
		Hierarchical: "true",
	})
	if err != nil {
		return TreeStats{}, fmt.Errorf("encode placeholder: %w", err)
	}

	err = storage.InBatch(ctx, st, func(st storage.Store) error {
		if clean {
			if err := x.removeShards(ctx, st); err != nil {
				return err
			}
		}
		if err := x.putEncrypted(ctx, st, x.names.FinalizedManifest, placeholder); err != nil {
			return err
		}
		for _, s := range shards {
			if err := x.putEncrypted(ctx, st, s.name, s.body); err != nil {
				return err
			}
		}
		return x.putEncrypted(ctx, st, x.names.TreeList, list)
	})
	if err != nil {
		return TreeStats{}, err
	}

	x.log.Info(ctx, "wrote manifest tree",
		"entries", len(x.index), "leaves", stats.Leaves, "nodes", stats.Nodes, "height", stats.Height)
	return stats, nil
}

// removeShards deletes every shard named by the stored shard list. A
// missing list means there is nothing to remove; unreadable lists and
// failed deletions only leave garbage behind and are logged.
func (x *Indexer) removeShards(ctx context.Context, st storage.Store) error {
	ok, err := st.Has(ctx, x.names.TreeList)
	if err != nil {
		return fmt.Errorf("probe %s: %w", x.names.TreeList, err)
	}
	if !ok {
		return nil
	}

	plain, err := getDecrypted(ctx, st, x.keys, x.names.TreeList)
	if err != nil {
		x.log.Warn(ctx, "ignoring shard list", "error", err)
		return nil
	}
	var old []string
	if err := json.Unmarshal(plain, &old); err != nil {
		x.log.Warn(ctx, "ignoring shard list", "error", fmt.Errorf("%w: %v", common.ErrMalformedManifest, err))
		return nil
	}

	for _, name := range old {
		if err := st.Delete(ctx, name); err != nil {
			x.log.Warn(ctx, "failed to delete stale shard", "name", name, "error", err)
		}
	}
	x.log.Debug(ctx, "removed stale shards", "count", len(old))
	return nil
}

// buildTree renders every leaf and node in write order: leaves, then each
// layer of nodes, with the root last under its fixed name.
func (x *Indexer) buildTree() ([]shard, TreeStats, error) {
	names := x.index.Names()

	if len(names) == 0 {
		body, err := json.Marshal(leafDocument{Files: map[string]index.Document{}, Type: shardLeaf})
		if err != nil {
			return nil, TreeStats{}, err
		}
		return []shard{{name: x.names.TreeRoot, body: body}}, TreeStats{Leaves: 1, Height: 1}, nil
	}

	var shards []shard
	var layer []treeNode
	stats := TreeStats{Height: 1}

	for i, group := range chunk(names, fanout) {
		files := make(map[string]index.Document, len(group))
		for _, name := range group {
			if e, ok := x.index[name]; ok {
				files[name] = x.dialect.Encode(e)
			}
		}
		if len(files) != len(group) {
			return nil, TreeStats{}, fmt.Errorf("%w: leaf %d holds %d of %d entries",
				common.ErrConsistency, i, len(files), len(group))
		}
		body, err := json.Marshal(leafDocument{Files: files, Type: shardLeaf})
		if err != nil {
			return nil, TreeStats{}, fmt.Errorf("encode leaf %d: %w", i, err)
		}
		name := x.names.Leaf(i)
		shards = append(shards, shard{name: name, body: body})
		layer = append(layer, treeNode{name: name, start: group[0], end: group[len(group)-1]})
	}
	stats.Leaves = len(layer)

	for depth := 2; len(layer) > 1; depth++ {
		var next []treeNode
		for i, children := range chunk(layer, fanout) {
			doc := nodeDocument{
				Start: children[0].start,
				End:   children[len(children)-1].end,
				Type:  shardNode,
			}
			for _, c := range children {
				doc.Child = append(doc.Child, c.name)
				doc.ChildStart = append(doc.ChildStart, c.start)
			}
			body, err := json.Marshal(doc)
			if err != nil {
				return nil, TreeStats{}, fmt.Errorf("encode node %d_%d: %w", depth, i, err)
			}
			name := x.names.Node(depth, i)
			shards = append(shards, shard{name: name, body: body})
			next = append(next, treeNode{name: name, start: doc.Start, end: doc.End})
		}
		layer = next
		stats.Nodes += len(next)
		stats.Height = depth
	}

	root := layer[0]
	if root.start != names[0] || root.end != names[len(names)-1] {
		return nil, TreeStats{}, fmt.Errorf("%w: root covers [%s, %s], index spans [%s, %s]",
			common.ErrConsistency, root.start, root.end, names[0], names[len(names)-1])
	}

	// the root keeps its body but is stored under the fixed root name
	last := len(shards) - 1
	if shards[last].name != root.name {
		return nil, TreeStats{}, fmt.Errorf("%w: root %s is not the last shard", common.ErrConsistency, root.name)
	}
	shards[last].name = x.names.TreeRoot
	return shards, stats, nil
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
