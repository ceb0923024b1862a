package chunkstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const chunkSuffix = ".chunk"

// DiskStore stages chunks on the local filesystem, one directory per
// upload, one file per chunk named by zero-padded offset.
type DiskStore struct {
	root string
}

var _ Store = (*DiskStore)(nil)

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Root returns the staging root directory.
func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) sessionDir(uploadID string) string {
	return filepath.Join(s.root, uploadID)
}

func (s *DiskStore) Stage(_ context.Context, uploadID string, offset int64, data []byte) error {
	dir := s.sessionDir(uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create staging dir for %s: %w", uploadID, err)
	}

	final := filepath.Join(dir, offsetKey(offset)+chunkSuffix)

	// Write through a temp file and rename so a torn write never shows up
	// as a staged chunk. Rename also makes duplicate delivery of the same
	// offset harmless: last identical write wins.
	tmp, err := os.CreateTemp(dir, offsetKey(offset)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create chunk temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write chunk %s@%d: %w", uploadID, offset, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close chunk temp file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit chunk %s@%d: %w", uploadID, offset, err)
	}
	return nil
}

func (s *DiskStore) List(_ context.Context, uploadID string) ([]ChunkInfo, error) {
	entries, err := os.ReadDir(s.sessionDir(uploadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("list chunks for %s: %w", uploadID, err)
	}

	chunks := make([]ChunkInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, chunkSuffix) {
			continue
		}
		offset, err := strconv.ParseInt(strings.TrimSuffix(name, chunkSuffix), 10, 64)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat chunk %s: %w", name, err)
		}
		chunks = append(chunks, ChunkInfo{Offset: offset, Size: info.Size()})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Offset < chunks[j].Offset })
	return chunks, nil
}

func (s *DiskStore) StagedBytes(ctx context.Context, uploadID string) (int64, error) {
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

func (s *DiskStore) ReadAll(ctx context.Context, uploadID string) ([]Chunk, error) {
	infos, err := s.List(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	dir := s.sessionDir(uploadID)
	out := make([]Chunk, 0, len(infos))
	for _, info := range infos {
		data, err := os.ReadFile(filepath.Join(dir, offsetKey(info.Offset)+chunkSuffix))
		if err != nil {
			return nil, fmt.Errorf("read chunk %s@%d: %w", uploadID, info.Offset, err)
		}
		out = append(out, Chunk{Offset: info.Offset, Data: data})
	}
	return out, nil
}

func (s *DiskStore) Purge(_ context.Context, uploadID string) error {
	if err := os.RemoveAll(s.sessionDir(uploadID)); err != nil {
		return fmt.Errorf("purge staging for %s: %w", uploadID, err)
	}
	return nil
}
