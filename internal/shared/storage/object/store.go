// Package object stores uploaded identity documents as opaque blobs.
package object

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/google/uuid"

	"kyc-backend/internal/shared/util"
)

// ErrMissing is returned by Open when no blob exists under the key.
var ErrMissing = errors.New("object missing")

// ObjectStore saves, streams and deletes document blobs. Storage keys are
// opaque to callers.
type ObjectStore interface {
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// NewKey builds a collision-free key of the form
// owners/<shard>/<owner hash>/<uuid>_<file name>. Owner ids never appear in
// clear text in the bucket.
func NewKey(ownerID, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(OwnerPrefix(ownerID), uuid.NewString()+"_"+name), nil
}

// OwnerPrefix is the directory holding every blob of one owner.
func OwnerPrefix(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	h := hex.EncodeToString(sum[:])
	return path.Join("owners", h[:2], h)
}

// Sniff detects the content type from the first 512 bytes and returns a reader
// that still yields the full body.
func Sniff(r io.Reader) (string, io.Reader, error) {
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	buf := append([]byte(nil), head[:n]...)
	return http.DetectContentType(buf), io.MultiReader(bytes.NewReader(buf), r), nil
}

// CountingReader counts bytes read through it.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}
