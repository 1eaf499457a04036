package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/service"
)

// MemoryMetadataStore implements service.MetadataStore on a map keyed by path.
type MemoryMetadataStore struct {
	mu   sync.Mutex
	docs map[string]entity.Document

	UpsertErr error
	FindErr   error
	PatchErr  error
	DeleteErr error
	SignErr   error
	ListErr   error

	Upserts int
}

func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{docs: map[string]entity.Document{}}
}

// Seed inserts doc as is.
func (m *MemoryMetadataStore) Seed(doc entity.Document) entity.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.SignStatus == "" {
		doc.SignStatus = entity.SignStatusUnsigned
	}
	m.docs[doc.Path] = doc
	return doc
}

// Get returns the stored record for path without failure injection.
func (m *MemoryMetadataStore) Get(path string) (entity.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	return doc, ok
}

func (m *MemoryMetadataStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *MemoryMetadataStore) UpsertByPath(ctx context.Context, doc *entity.Document) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts++

	next := *doc
	if current, ok := m.docs[doc.Path]; ok {
		next.ID = current.ID
		next.OwnerID = current.OwnerID
		next.CreatedAt = current.CreatedAt
	}
	m.docs[doc.Path] = next
	*doc = next
	return nil
}

func (m *MemoryMetadataStore) FindByPath(ctx context.Context, path string) (*entity.Document, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	if !ok {
		return nil, service.ErrRecordNotFound
	}
	return &doc, nil
}

func (m *MemoryMetadataStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.ID == id {
			return &doc, nil
		}
	}
	return nil, service.ErrRecordNotFound
}

func (m *MemoryMetadataStore) FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]entity.Document, int64, error) {
	return m.page(func(d entity.Document) bool { return d.OwnerID == ownerID }, limit, offset)
}

func (m *MemoryMetadataStore) FindAll(ctx context.Context, limit, offset int) ([]entity.Document, int64, error) {
	return m.page(func(entity.Document) bool { return true }, limit, offset)
}

func (m *MemoryMetadataStore) page(match func(entity.Document) bool, limit, offset int) ([]entity.Document, int64, error) {
	if m.ListErr != nil {
		return nil, 0, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []entity.Document
	for _, doc := range m.docs {
		if match(doc) {
			all = append(all, doc)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Path < all[j].Path
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []entity.Document{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *MemoryMetadataStore) DeleteByPath(ctx context.Context, path string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[path]; !ok {
		return service.ErrRecordNotFound
	}
	delete(m.docs, path)
	return nil
}

func (m *MemoryMetadataStore) PatchByPath(ctx context.Context, path string, patch service.DocumentPatch) error {
	if m.PatchErr != nil {
		return m.PatchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	if !ok {
		return service.ErrRecordNotFound
	}
	if patch.ContentType != "" {
		doc.ContentType = patch.ContentType
	}
	if patch.Size != nil {
		doc.Size = patch.Size
	}
	doc.LastModified = patch.LastModified
	m.docs[path] = doc
	return nil
}

func (m *MemoryMetadataStore) MarkSigned(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	if m.SignErr != nil {
		return 0, m.SignErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, doc := range m.docs {
		if doc.ID == id && doc.SignStatus == entity.SignStatusUnsigned {
			doc.SignStatus = entity.SignStatusSigned
			doc.LastModified = at
			m.docs[path] = doc
			return 1, nil
		}
	}
	return 0, nil
}

func (m *MemoryMetadataStore) FindByPathPrefix(ctx context.Context, prefix string) ([]entity.Document, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []entity.Document
	for path, doc := range m.docs {
		if strings.HasPrefix(path, prefix) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}
