package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a digest algorithm for artifact integrity.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

var ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")

func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA1, SHA256, BLAKE3}
}

// ParseAlgorithm parses a (case-insensitive) algorithm name.
//
// It returns ErrUnknownAlgorithm for names out of Algorithms().
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(s))
	switch a {
	case MD5, SHA1, SHA256, BLAKE3:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAlgorithm, s)
	}
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, a)
	}
}

type Writer interface {
	io.Writer

	// Sum returns hex digest of bytes have been written.
	Sum() string
}

type Reader interface {
	io.Reader

	// Sum returns hex digest of bytes have been read.
	Sum() string
}

type sumWriter struct {
	dest io.Writer
	h    hash.Hash
}

func NewWriter(dest io.Writer, algorithm Algorithm) (Writer, error) {
	h, err := algorithm.newHash()
	if err != nil {
		return nil, err
	}
	return &sumWriter{dest: dest, h: h}, nil
}

func (w *sumWriter) Write(buf []byte) (int, error) {
	w.h.Write(buf)
	return w.dest.Write(buf)
}

func (w *sumWriter) Sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

type sumReader struct {
	source io.Reader
	h      hash.Hash
}

func NewReader(source io.Reader, algorithm Algorithm) (Reader, error) {
	h, err := algorithm.newHash()
	if err != nil {
		return nil, err
	}
	return &sumReader{source: source, h: h}, nil
}

func (r *sumReader) Read(p []byte) (int, error) {
	n, err := r.source.Read(p)
	if 0 < n {
		r.h.Write(p[:n])
	}
	return n, err
}

func (r *sumReader) Sum() string {
	return hex.EncodeToString(r.h.Sum(nil))
}

// File computes the digest of the file at path.
//
// # Returns
//
// - string: hex digest
//
// - int64: size of the file in bytes
//
// - error
func File(path string, algorithm Algorithm) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h, err := algorithm.newHash()
	if err != nil {
		return "", 0, err
	}

	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
