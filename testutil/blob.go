// Package testutil provides in-memory doubles of the document stores and the
// external collaborators, with failure injection for tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tnqbao/gau-document-gateway/service"
)

type blobObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// MemoryBlobStore implements service.BlobStore on a map. The *Err fields make
// the matching operation fail.
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string]blobObject

	PutErr       error
	GetErr       error
	ExistsErr    error
	DeleteErr    error
	CopyErr      error
	SignErr      error
	HasPrefixErr error

	Puts       int
	Copies     int
	Deletes    int
	SignedURLs int
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: map[string]blobObject{}}
}

// Seed stores an object without going through Put.
func (m *MemoryBlobStore) Seed(path string, data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = blobObject{data: append([]byte(nil), data...), contentType: contentType, lastModified: time.Now()}
}

// Remove deletes an object behind the service's back.
func (m *MemoryBlobStore) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
}

func (m *MemoryBlobStore) Has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

func (m *MemoryBlobStore) Data(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.objects[path].data...)
}

func (m *MemoryBlobStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryBlobStore) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("short write: got %d bytes, want %d", len(data), size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts++
	m.objects[path] = blobObject{data: data, contentType: contentType, lastModified: time.Now()}
	return nil
}

func (m *MemoryBlobStore) Get(ctx context.Context, path string) (io.ReadCloser, service.BlobInfo, error) {
	if m.GetErr != nil {
		return nil, service.BlobInfo{}, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, service.BlobInfo{}, service.ErrBlobNotFound
	}
	info := service.BlobInfo{Size: int64(len(obj.data)), ContentType: obj.contentType, LastModified: obj.lastModified}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (m *MemoryBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return m.Has(path), nil
}

func (m *MemoryBlobStore) Delete(ctx context.Context, path string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return service.ErrBlobNotFound
	}
	m.Deletes++
	delete(m.objects, path)
	return nil
}

func (m *MemoryBlobStore) Copy(ctx context.Context, srcPath, dstPath string) error {
	if m.CopyErr != nil {
		return m.CopyErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[srcPath]
	if !ok {
		return service.ErrBlobNotFound
	}
	m.Copies++
	obj.lastModified = time.Now()
	m.objects[dstPath] = obj
	return nil
}

func (m *MemoryBlobStore) SignedURL(ctx context.Context, path string, ttl time.Duration, method string) (string, error) {
	if m.SignErr != nil {
		return "", m.SignErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SignedURLs++
	return fmt.Sprintf("https://blob.test/%s?method=%s&expires=%d", path, method, int(ttl.Seconds())), nil
}

func (m *MemoryBlobStore) HasPrefix(ctx context.Context, prefix string) (bool, error) {
	if m.HasPrefixErr != nil {
		return false, m.HasPrefixErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryBlobStore) EnsureBucket(ctx context.Context) error {
	return nil
}

func (m *MemoryBlobStore) StorageInfo(ctx context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{"backend": "memory", "objects": len(m.objects)}, nil
}
