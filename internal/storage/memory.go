package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore is a BlobStore for tests and DB_TYPE=memory runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

type memoryBlob struct {
	data []byte
	info BlobInfo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memoryBlob)}
}

func (s *MemoryStore) Put(ctx context.Context, path, contentType string, r io.Reader) (*BlobInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	info := BlobInfo{Path: path, ContentType: contentType, Size: int64(len(data)), UploadedAt: time.Now()}
	s.mu.Lock()
	s.blobs[path] = memoryBlob{data: data, info: info}
	s.mu.Unlock()

	out := info
	return &out, nil
}

func (s *MemoryStore) Open(ctx context.Context, path string) (io.ReadCloser, *BlobInfo, error) {
	s.mu.RLock()
	blob, ok := s.blobs[path]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	info := blob.info
	return io.NopCloser(bytes.NewReader(blob.data)), &info, nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[path]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, path)
	return nil
}

var (
	_ BlobStore = (*MemoryStore)(nil)
	_ BlobStore = (*GridFSStore)(nil)
)
