package indexer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/dmitrijs2005/cryptindex/internal/cryptox"
	"github.com/dmitrijs2005/cryptindex/internal/index"
	"github.com/dmitrijs2005/cryptindex/internal/storage"
)

const (
	bloomMinElements = 3
	bloomFPRate      = 0.03
)

// flatDocument is the plaintext layout of a flat or placeholder manifest.
type flatDocument struct {
	Files        map[string]index.Document `json:"files"`
	Meta         map[string]string         `json:"meta"`
	Hierarchical string                    `json:"hierarchical,omitempty"`
}

// Serialize returns the encrypted flat manifest of the current index.
func (x *Indexer) Serialize() ([]byte, error) {
	plain, err := x.flatPlaintext()
	if err != nil {
		return nil, err
	}
	return cryptox.Encrypt(x.keys, plain)
}

func (x *Indexer) flatPlaintext() ([]byte, error) {
	bf, err := x.BloomFilter()
	if err != nil {
		return nil, err
	}
	doc := flatDocument{
		Files: index.EncodeIndex(x.dialect, x.index),
		Meta:  map[string]string{x.names.BloomFilter: base64.StdEncoding.EncodeToString(bf)},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return b, nil
}

// BloomFilter returns the serialized membership filter of every logical
// name, sized for at least three elements.
func (x *Indexer) BloomFilter() ([]byte, error) {
	n := len(x.index)
	if n < bloomMinElements {
		n = bloomMinElements
	}
	bf := bloom.NewWithEstimates(uint(n), bloomFPRate)
	for name := range x.index {
		bf.Add([]byte(name))
	}
	var buf bytes.Buffer
	if _, err := bf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode bloom filter: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFlat stores the flat manifest under the finalized manifest name.
func (x *Indexer) WriteFlat(ctx context.Context, st storage.Store) error {
	plain, err := x.flatPlaintext()
	if err != nil {
		return err
	}
	if err := x.putEncrypted(ctx, st, x.names.FinalizedManifest, plain); err != nil {
		return err
	}
	x.log.Info(ctx, "wrote flat manifest", "name", x.names.FinalizedManifest, "entries", len(x.index))
	return nil
}

// putEncrypted streams plaintext through the cipher into st under name.
func (x *Indexer) putEncrypted(ctx context.Context, st storage.Store, name string, plaintext []byte) error {
	w, err := st.Put(ctx, name)
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	ew, err := cryptox.NewEncryptWriter(w, x.keys)
	if err != nil {
		_ = storage.Abort(w)
		return err
	}
	if _, err := ew.Write(plaintext); err != nil {
		_ = storage.Abort(w)
		return fmt.Errorf("encrypt %s: %w", name, err)
	}
	if err := ew.Close(); err != nil {
		_ = storage.Abort(w)
		return fmt.Errorf("encrypt %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

// getDecrypted reads name from src and decrypts it with keys.
func getDecrypted(ctx context.Context, src storage.Source, keys cryptox.Keys, name string) ([]byte, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dr, err := cryptox.NewDecryptReader(rc, keys)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(dr); err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
