// Package cryptox provides the key material and the stream cipher used for
// every manifest and shard blob. Blobs are AES-128-CBC with PKCS#7 padding;
// the key material is a pair of 16-byte halves (cipher key and IV).
package cryptox

import (
	"crypto/aes"
	"crypto/sha256"
	"fmt"

	"github.com/dmitrijs2005/cryptindex/internal/common"
)

// HalfSize is the length of each half of the key material.
const HalfSize = 16

// Keys is the symmetric key material: Key feeds the block cipher and IV
// seeds the CBC chain.
type Keys struct {
	Key []byte
	IV  []byte
}

// DeriveKeys derives key material from a password. The cipher key is the
// first half of SHA256(SHA256(password)); the IV is the last half of
// SHA256(SHA256(password+password)).
func DeriveKeys(password string) Keys {
	a := doubleDigest([]byte(password))
	b := doubleDigest([]byte(password + password))
	return Keys{
		Key: append([]byte(nil), a[:HalfSize]...),
		IV:  append([]byte(nil), b[len(b)-HalfSize:]...),
	}
}

func doubleDigest(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// WithIV returns a copy of k whose IV half is replaced by iv.
func (k Keys) WithIV(iv []byte) (Keys, error) {
	if len(iv) != HalfSize {
		return Keys{}, fmt.Errorf("%w: iv must be %d bytes, got %d", common.ErrInvalidKeys, HalfSize, len(iv))
	}
	return Keys{
		Key: append([]byte(nil), k.Key...),
		IV:  append([]byte(nil), iv...),
	}, nil
}

// Validate checks both halves have the expected length.
func (k Keys) Validate() error {
	if len(k.Key) != HalfSize || len(k.IV) != HalfSize {
		return fmt.Errorf("%w: key=%d iv=%d bytes", common.ErrInvalidKeys, len(k.Key), len(k.IV))
	}
	return nil
}

// Wipe zeroes both halves. Keys must not be used afterwards.
func (k Keys) Wipe() {
	WipeByteArray(k.Key)
	WipeByteArray(k.IV)
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is useful for removing passwords and key material from memory after
// use. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	for i := 0; i < n; i++ {
		b = append(b, byte(n))
	}
	return b
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a positive multiple of %d", len(b), aes.BlockSize)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, fmt.Errorf("bad padding byte %d", n)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
