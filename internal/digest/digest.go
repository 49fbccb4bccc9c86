// Package digest streams byte content through SHA-256 to produce
// verification checksums. Reads happen in fixed-size chunks so
// multi-gigabyte card files are never loaded into memory.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// ChunkSize is the buffer size used when streaming data through the
// hash, and the copy buffer size used by the copy engine.
const ChunkSize = 256 * 1024

// Reader streams r through SHA-256 and returns the lowercase
// hexadecimal digest. Identical byte content always yields the same
// digest.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", errors.Wrap(err, "hashing stream")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File computes the SHA-256 digest of the file at path. Read errors
// carry the offending path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s for hashing", path)
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", errors.Wrapf(err, "hashing %s", path)
	}
	return sum, nil
}
