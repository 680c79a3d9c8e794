package index

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/cryptindex/internal/common"
)

// Document is the structured form of an Entry as stored in manifests and
// shard leaves. Nonce is omitted by dialects that do not track nonces.
type Document struct {
	Files        []string `json:"files"`
	Nonce        []string `json:"nonce,omitempty"`
	SplitSize    int      `json:"splitSize"`
	LastModified int64    `json:"lastModified"`
	Size         int64    `json:"size"`
}

// rawDocument is the permissive read-side shape: nonce may be absent, and its
// elements may be decimal strings or bare JSON numbers.
type rawDocument struct {
	Files        []string          `json:"files"`
	Nonce        []json.RawMessage `json:"nonce"`
	SplitSize    int               `json:"splitSize"`
	LastModified int64             `json:"lastModified"`
	Size         int64             `json:"size"`
}

func parseNonce(raw json.RawMessage) (*big.Int, error) {
	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
	}
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("%w: bad nonce %s", common.ErrMalformedManifest, string(raw))
	}
	return n, nil
}

func decodeRaw(data []byte) (rawDocument, error) {
	var rd rawDocument
	if err := json.Unmarshal(data, &rd); err != nil {
		return rawDocument{}, fmt.Errorf("%w: %v", common.ErrMalformedManifest, err)
	}
	if rd.Files == nil {
		rd.Files = []string{}
	}
	return rd, nil
}
