package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
)

type encryptWriter struct {
	w      io.Writer
	mode   cipher.BlockMode
	buf    []byte
	closed bool
}

// NewEncryptWriter returns a writer that encrypts everything written to it
// into w. The final padded block is emitted on Close, which does not close w.
func NewEncryptWriter(w io.Writer, keys Keys) (io.WriteCloser, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keys.Key)
	if err != nil {
		return nil, err
	}
	return &encryptWriter{w: w, mode: cipher.NewCBCEncrypter(block, keys.IV)}, nil
}

func (e *encryptWriter) Write(p []byte) (int, error) {
	if e.closed {
		return 0, errors.New("write to closed encrypt writer")
	}
	e.buf = append(e.buf, p...)
	// the tail block is held back so Close can pad it
	n := (len(e.buf) / aes.BlockSize) * aes.BlockSize
	if n == len(e.buf) {
		n -= aes.BlockSize
	}
	if n <= 0 {
		return len(p), nil
	}
	out := make([]byte, n)
	e.mode.CryptBlocks(out, e.buf[:n])
	if _, err := e.w.Write(out); err != nil {
		return 0, err
	}
	e.buf = append(e.buf[:0], e.buf[n:]...)
	return len(p), nil
}

func (e *encryptWriter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	tail := pad(e.buf)
	out := make([]byte, len(tail))
	e.mode.CryptBlocks(out, tail)
	_, err := e.w.Write(out)
	return err
}

type decryptReader struct {
	r    io.Reader
	mode cipher.BlockMode
	in   []byte
	out  bytes.Buffer
	eof  bool
}

// NewDecryptReader returns a reader yielding the plaintext of r. Padding is
// verified when the underlying reader is exhausted.
func NewDecryptReader(r io.Reader, keys Keys) (io.Reader, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keys.Key)
	if err != nil {
		return nil, err
	}
	return &decryptReader{r: r, mode: cipher.NewCBCDecrypter(block, keys.IV)}, nil
}

func (d *decryptReader) Read(p []byte) (int, error) {
	for d.out.Len() == 0 && !d.eof {
		if err := d.fill(); err != nil {
			return 0, err
		}
	}
	if d.out.Len() == 0 {
		return 0, io.EOF
	}
	return d.out.Read(p)
}

func (d *decryptReader) fill() error {
	chunk := make([]byte, 32*1024)
	n, err := d.r.Read(chunk)
	d.in = append(d.in, chunk[:n]...)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if errors.Is(err, io.EOF) {
		d.eof = true
		plain := make([]byte, len(d.in))
		if len(d.in)%aes.BlockSize != 0 || len(d.in) == 0 {
			return fmt.Errorf("decrypt: ciphertext length %d is not a positive multiple of %d", len(d.in), aes.BlockSize)
		}
		d.mode.CryptBlocks(plain, d.in)
		plain, perr := unpad(plain)
		if perr != nil {
			return fmt.Errorf("decrypt: %w", perr)
		}
		d.out.Write(plain)
		d.in = nil
		return nil
	}
	// keep the last full block back until EOF reveals whether it carries padding
	ready := (len(d.in)/aes.BlockSize - 1) * aes.BlockSize
	if ready <= 0 {
		return nil
	}
	plain := make([]byte, ready)
	d.mode.CryptBlocks(plain, d.in[:ready])
	d.out.Write(plain)
	d.in = append(d.in[:0], d.in[ready:]...)
	return nil
}

// Encrypt encrypts plaintext in one shot.
func Encrypt(keys Keys, plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewEncryptWriter(&buf, keys)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decrypt decrypts ciphertext in one shot.
func Decrypt(keys Keys, ciphertext []byte) ([]byte, error) {
	r, err := NewDecryptReader(bytes.NewReader(ciphertext), keys)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
