package cryptox

import (
	"bytes"
	"crypto/sha256"
	"io"
	"testing"

	"github.com/dmitrijs2005/cryptindex/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeys_Deterministic(t *testing.T) {
	k1 := DeriveKeys("secret-password")
	k2 := DeriveKeys("secret-password")

	require.Equal(t, k1, k2)
	require.Len(t, k1.Key, HalfSize)
	require.Len(t, k1.IV, HalfSize)
	require.NoError(t, k1.Validate())
}

func TestDeriveKeys_Halves(t *testing.T) {
	pw := "test"
	a1 := sha256.Sum256([]byte(pw))
	a2 := sha256.Sum256(a1[:])
	b1 := sha256.Sum256([]byte(pw + pw))
	b2 := sha256.Sum256(b1[:])

	k := DeriveKeys(pw)
	assert.Equal(t, a2[:16], k.Key)
	assert.Equal(t, b2[16:], k.IV)
}

func TestDeriveKeys_DifferentInputs(t *testing.T) {
	k1 := DeriveKeys("password-1")
	k2 := DeriveKeys("password-2")

	if bytes.Equal(k1.Key, k2.Key) {
		t.Errorf("expected different keys for different passwords")
	}
}

func TestWithIV(t *testing.T) {
	k := DeriveKeys("pw")
	iv := bytes.Repeat([]byte{7}, HalfSize)

	k2, err := k.WithIV(iv)
	require.NoError(t, err)
	assert.Equal(t, k.Key, k2.Key)
	assert.Equal(t, iv, k2.IV)
	assert.NotEqual(t, k.IV, k2.IV)

	_, err = k.WithIV([]byte{1, 2, 3})
	require.ErrorIs(t, err, common.ErrInvalidKeys)
}

func TestValidate_RejectsShortHalves(t *testing.T) {
	err := Keys{Key: make([]byte, 8), IV: make([]byte, 16)}.Validate()
	require.ErrorIs(t, err, common.ErrInvalidKeys)

	_, err = Encrypt(Keys{}, []byte("x"))
	require.ErrorIs(t, err, common.ErrInvalidKeys)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	keys := DeriveKeys("round-trip")
	for _, n := range []int{0, 1, 15, 16, 17, 31, 32, 33, 1000, 70000} {
		plain := bytes.Repeat([]byte{byte(n)}, n)

		ct, err := Encrypt(keys, plain)
		require.NoError(t, err)
		require.Zero(t, len(ct)%16, "ciphertext must be block aligned")
		require.Greater(t, len(ct), n, "padding always adds at least one byte")

		got, err := Decrypt(keys, ct)
		require.NoError(t, err)
		require.Equal(t, len(plain), len(got))
		require.True(t, bytes.Equal(plain, got), "n=%d", n)
	}
}

func TestEncryptWriter_ChunkedWritesMatchOneShot(t *testing.T) {
	keys := DeriveKeys("chunks")
	plain := []byte("the quick brown fox jumps over the lazy dog, several times over")

	oneShot, err := Encrypt(keys, plain)
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := NewEncryptWriter(&buf, keys)
	require.NoError(t, err)
	for i := 0; i < len(plain); i += 5 {
		end := min(i+5, len(plain))
		_, err := w.Write(plain[i:end])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")

	assert.Equal(t, oneShot, buf.Bytes())
}

// oneByteReader forces the decrypt reader through many small fills.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestDecryptReader_SmallReads(t *testing.T) {
	keys := DeriveKeys("small")
	plain := bytes.Repeat([]byte("0123456789"), 50)
	ct, err := Encrypt(keys, plain)
	require.NoError(t, err)

	r, err := NewDecryptReader(oneByteReader{bytes.NewReader(ct)}, keys)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestDecrypt_WrongKeyOrTruncated(t *testing.T) {
	keys := DeriveKeys("right")
	ct, err := Encrypt(keys, []byte(`{"files":{}}`))
	require.NoError(t, err)

	_, err = Decrypt(keys, ct[:len(ct)-3])
	require.Error(t, err)

	_, err = Decrypt(keys, nil)
	require.Error(t, err)

	// a wrong key almost always breaks the padding; if it does not, the
	// plaintext must at least differ
	got, err := Decrypt(DeriveKeys("wrong"), ct)
	if err == nil {
		assert.NotEqual(t, []byte(`{"files":{}}`), got)
	}
}

func TestWipe(t *testing.T) {
	k := DeriveKeys("wipe")
	k.Wipe()
	assert.Equal(t, make([]byte, HalfSize), k.Key)
	assert.Equal(t, make([]byte, HalfSize), k.IV)

	buf := []byte{1, 2, 3}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0}, buf)
	WipeByteArray(nil)
}
