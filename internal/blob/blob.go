// Package blob stores uploaded files (payment proofs, dispute evidence, ticket
// proofs, identity documents) and hands out their public URLs.
package blob

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ms-resale/internal/apperr"
)

const (
	BucketPaymentProofs   = "payment-proofs"
	BucketDisputeEvidence = "dispute-evidence"
	BucketTicketProofs    = "ticket-proofs"
	BucketIDDocuments     = "id-documents"
)

const (
	MB = 1 << 20

	MaxProofSize      = 5 * MB
	MaxEvidenceSize   = 5 * MB
	MaxIDDocumentSize = 10 * MB
)

// Buckets lists every bucket the marketplace writes to.
var Buckets = []string{BucketPaymentProofs, BucketDisputeEvidence, BucketTicketProofs, BucketIDDocuments}

type Store interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	PublicURL(bucket, path string) string
}

// File is an uploaded file held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

// CheckSize rejects empty files and files larger than max bytes.
func CheckSize(f File, max int64) error {
	if f.Size() == 0 {
		return apperr.Validation("file %q is empty", f.Name)
	}
	if f.Size() > max {
		return apperr.Validation("file %q exceeds %d MB", f.Name, max/MB)
	}
	return nil
}

// ObjectPath returns <owner>/<unix-ms>-<random>.<ext>.
func ObjectPath(ownerID, filename string, now time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d-%s.%s", ownerID, now.UnixMilli(), randomSuffix(), ext)
}

// Put uploads f for owner and returns its public URL. Upload failures are
// reported as storage errors.
func Put(ctx context.Context, store Store, bucket, ownerID string, f File, now time.Time) (string, error) {
	path := ObjectPath(ownerID, f.Name, now)
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := store.Upload(ctx, bucket, path, f.Data, contentType); err != nil {
		return "", apperr.Storage(err, "upload to %s failed", bucket)
	}
	return store.PublicURL(bucket, path), nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
