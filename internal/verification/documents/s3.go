// Package documents fetches uploaded verification documents.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"carecheck/internal/verification/models"
	"carecheck/internal/verification/ports"
	"carecheck/pkg/platform/sentinel"
)

// MaxDocumentBytes caps a single fetched document.
const MaxDocumentBytes = 20 << 20

// ObjectGetter is the slice of the S3 API the source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads documents from one bucket.
type S3Source struct {
	client ObjectGetter
	bucket string
}

func NewS3Source(client ObjectGetter, bucket string) *S3Source {
	return &S3Source{client: client, bucket: bucket}
}

func (s *S3Source) Fetch(ctx context.Context, ref models.DocumentRef) (ports.Document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return ports.Document{}, fmt.Errorf("document %s: %w", ref.Key, sentinel.ErrNotFound)
		}
		return ports.Document{}, fmt.Errorf("get document %s: %w", ref.Key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, MaxDocumentBytes+1))
	if err != nil {
		return ports.Document{}, fmt.Errorf("read document %s: %w", ref.Key, err)
	}
	if len(body) > MaxDocumentBytes {
		return ports.Document{}, fmt.Errorf("document %s exceeds %d bytes", ref.Key, MaxDocumentBytes)
	}

	contentType := ref.ContentType
	if contentType == "" {
		contentType = aws.ToString(out.ContentType)
	}
	return ports.Document{Ref: ref, ContentType: contentType, Body: body}, nil
}

// MemorySource serves documents from a map, for local runs and tests.
type MemorySource struct {
	mu   sync.RWMutex
	docs map[string]ports.Document
}

func NewMemorySource() *MemorySource {
	return &MemorySource{docs: make(map[string]ports.Document)}
}

// Put stores a document under ref.Key.
func (m *MemorySource) Put(ref models.DocumentRef, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[ref.Key] = ports.Document{Ref: ref, ContentType: ref.ContentType, Body: body}
}

// Fetch returns the stored document. Unknown keys return an empty document so
// local runs without uploads still reach the extractor.
func (m *MemorySource) Fetch(_ context.Context, ref models.DocumentRef) (ports.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if doc, ok := m.docs[ref.Key]; ok {
		return doc, nil
	}
	return ports.Document{Ref: ref, ContentType: ref.ContentType}, nil
}
