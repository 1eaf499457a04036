package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-document-gateway/entity"
)

// Store contract errors returned by adapters.
var (
	ErrBlobNotFound   = errors.New("blob not found")
	ErrRecordNotFound = errors.New("metadata record not found")
)

type BlobInfo struct {
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobStore is the object store holding raw file bytes keyed by path.
type BlobStore interface {
	Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
	// Get returns ErrBlobNotFound when no object exists at path.
	Get(ctx context.Context, path string) (io.ReadCloser, BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Delete returns ErrBlobNotFound when no object exists at path.
	Delete(ctx context.Context, path string) error
	Copy(ctx context.Context, srcPath, dstPath string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration, method string) (string, error)
	// HasPrefix reports whether at least one object key starts with prefix.
	HasPrefix(ctx context.Context, prefix string) (bool, error)
}

// DocumentPatch holds the content fields refreshed by an update. Empty
// ContentType and nil Size leave the stored values unchanged.
type DocumentPatch struct {
	ContentType  string
	Size         *int64
	LastModified time.Time
}

// MetadataStore is the document database holding one record per path.
type MetadataStore interface {
	// UpsertByPath inserts doc or, when doc.Path exists, overwrites its mutable
	// fields. ID, OwnerID and CreatedAt of an existing record are preserved.
	UpsertByPath(ctx context.Context, doc *entity.Document) error
	FindByPath(ctx context.Context, path string) (*entity.Document, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]entity.Document, int64, error)
	FindAll(ctx context.Context, limit, offset int) ([]entity.Document, int64, error)
	DeleteByPath(ctx context.Context, path string) error
	PatchByPath(ctx context.Context, path string, patch DocumentPatch) error
	// MarkSigned moves an unsigned record to signed and returns the number of
	// records changed.
	MarkSigned(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	FindByPathPrefix(ctx context.Context, prefix string) ([]entity.Document, error)
}

// EventPublisher delivers document events and metadata repair jobs. Delivery is
// best effort.
type EventPublisher interface {
	PublishDocumentEvent(ctx context.Context, event entity.DocumentEvent) error
	PublishMetadataRepair(ctx context.Context, job entity.MetadataRepairJob) error
}

type Logger interface {
	InfoWithContextf(ctx context.Context, format string, args ...any)
	WarningWithContextf(ctx context.Context, format string, args ...any)
	ErrorWithContextf(ctx context.Context, err error, format string, args ...any)
}
