package indexer

import "fmt"

// Names is the table of persisted blob names. The values are an
// interoperability contract with every reader, so both dialects share one
// table.
type Names struct {
	Manifest          string // raw manifest written next to the chunks
	FinalizedManifest string // output of WriteFlat, placeholder for WriteTree
	ManifestNonce     string // optional IV override for the manifest itself
	BloomFilter       string // meta key of the serialized bloom filter
	TreeList          string
	TreeRoot          string
	TreeNodePrefix    string
	TreeLeafPrefix    string
	ArchiveScheme     string // prefix of archive member references
}

// DefaultNames returns the standard name table.
func DefaultNames() Names {
	return Names{
		Manifest:          "manifest",
		FinalizedManifest: "manifest_index",
		ManifestNonce:     "manifest_nonce",
		BloomFilter:       "bloom_filter",
		TreeList:          "manifest_hierarchical_list",
		TreeRoot:          "manifest_hierarchical_root",
		TreeNodePrefix:    "manifest_hierarchical_node",
		TreeLeafPrefix:    "manifest_hierarchical_leaf",
		ArchiveScheme:     "zip",
	}
}

// Leaf names the i-th leaf shard.
func (n Names) Leaf(i int) string {
	return fmt.Sprintf("%s_%d", n.TreeLeafPrefix, i)
}

// Node names the i-th internal node at depth (leaves are depth 1).
func (n Names) Node(depth, i int) string {
	return fmt.Sprintf("%s_%d_%d", n.TreeNodePrefix, depth, i)
}

// ArchiveMember references member inside the archive at path.
func (n Names) ArchiveMember(path, member string) string {
	return n.ArchiveScheme + ":" + path + "!" + member
}
