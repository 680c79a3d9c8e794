package index

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmitrijs2005/cryptindex/internal/common"
)

// Dialect is a manifest format version. Both dialects share the builder,
// coalescer and sharder; they differ only in how an entry is encoded and
// whether the manifest IV may be overridden by a nonce blob.
type Dialect interface {
	Name() string
	// TracksNonces reports whether entries carry per-chunk nonces.
	TracksNonces() bool
	// OverridesManifestIV reports whether a nonce blob next to a manifest
	// replaces the IV used to decrypt that manifest.
	OverridesManifestIV() bool
	Encode(e Entry) Document
	Decode(data []byte) (Entry, error)
}

var (
	// V1 is dialect A: a plain chunk list, no nonces.
	V1 Dialect = v1{}
	// V3 is dialect B: per-chunk nonces, reads V1 documents with zero nonces.
	V3 Dialect = v3{}
)

// DialectByName resolves "v1"/"a" and "v3"/"b" (case-insensitive).
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "v1", "a":
		return V1, nil
	case "v3", "b":
		return V3, nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownDialect, name)
	}
}

type v1 struct{}

func (v1) Name() string              { return "v1" }
func (v1) TracksNonces() bool        { return false }
func (v1) OverridesManifestIV() bool { return false }

func (v1) Encode(e Entry) Document {
	return Document{
		Files:        nonNil(e.Chunks),
		SplitSize:    e.SplitSize,
		LastModified: e.LastModified,
		Size:         e.Size,
	}
}

func (v1) Decode(data []byte) (Entry, error) {
	rd, err := decodeRaw(data)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Chunks:       rd.Files,
		SplitSize:    rd.SplitSize,
		LastModified: rd.LastModified,
		Size:         rd.Size,
	}, nil
}

type v3 struct{}

func (v3) Name() string              { return "v3" }
func (v3) TracksNonces() bool        { return true }
func (v3) OverridesManifestIV() bool { return true }

func (v3) Encode(e Entry) Document {
	nonces := e.Nonces
	if nonces == nil {
		nonces = ZeroNonces(len(e.Chunks))
	}
	out := make([]string, len(nonces))
	for i, n := range nonces {
		out[i] = nonceOrZero(n).String()
	}
	return Document{
		Files:        nonNil(e.Chunks),
		Nonce:        out,
		SplitSize:    e.SplitSize,
		LastModified: e.LastModified,
		Size:         e.Size,
	}
}

func (v3) Decode(data []byte) (Entry, error) {
	rd, err := decodeRaw(data)
	if err != nil {
		return Entry{}, err
	}
	var nonces []*big.Int
	if rd.Nonce == nil {
		nonces = ZeroNonces(len(rd.Files))
	} else {
		if len(rd.Nonce) != len(rd.Files) {
			return Entry{}, fmt.Errorf("%w: %d nonces for %d chunks", common.ErrMalformedManifest, len(rd.Nonce), len(rd.Files))
		}
		nonces = make([]*big.Int, len(rd.Nonce))
		for i, raw := range rd.Nonce {
			if nonces[i], err = parseNonce(raw); err != nil {
				return Entry{}, err
			}
		}
	}
	return Entry{
		Chunks:       rd.Files,
		Nonces:       nonces,
		SplitSize:    rd.SplitSize,
		LastModified: rd.LastModified,
		Size:         rd.Size,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// EncodeIndex renders every entry of ix with d.
func EncodeIndex(d Dialect, ix Index) map[string]Document {
	out := make(map[string]Document, len(ix))
	for name, e := range ix {
		out[name] = d.Encode(e)
	}
	return out
}

// DecodeIndex parses a name → document object with d.
func DecodeIndex(d Dialect, files map[string]json.RawMessage) (Index, error) {
	out := make(Index, len(files))
	for name, raw := range files {
		e, err := d.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", name, err)
		}
		out[name] = e
	}
	return out, nil
}
