package chunkstore

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store used by tests and by the assembler's
// unit tests, so assembly logic can be exercised without real I/O.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]map[int64][]byte
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]map[int64][]byte)}
}

func (s *MemStore) Stage(_ context.Context, uploadID string, offset int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[uploadID]
	if !ok {
		session = make(map[int64][]byte)
		s.sessions[uploadID] = session
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	session[offset] = buf
	return nil
}

func (s *MemStore) List(_ context.Context, uploadID string) ([]ChunkInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[uploadID]
	if !ok {
		return nil, ErrNotFound
	}
	chunks := make([]ChunkInfo, 0, len(session))
	for offset, data := range session {
		chunks = append(chunks, ChunkInfo{Offset: offset, Size: int64(len(data))})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Offset < chunks[j].Offset })
	return chunks, nil
}

func (s *MemStore) StagedBytes(ctx context.Context, uploadID string) (int64, error) {
	chunks, err := s.List(ctx, uploadID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, c := range chunks {
		total += c.Size
	}
	return total, nil
}

func (s *MemStore) ReadAll(_ context.Context, uploadID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[uploadID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Chunk, 0, len(session))
	for offset, data := range session {
		buf := make([]byte, len(data))
		copy(buf, data)
		out = append(out, Chunk{Offset: offset, Data: buf})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out, nil
}

func (s *MemStore) Purge(_ context.Context, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, uploadID)
	return nil
}
