package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalSink stores media on local disk and serves it through the
// server's /media/ route. Used for development and tests.
type LocalSink struct {
	root    string
	baseURL string
}

var _ Sink = (*LocalSink)(nil)

func NewLocalSink(root, baseURL string) (*LocalSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalSink{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Root returns the media root directory, for the file-serving route.
func (s *LocalSink) Root() string { return s.root }

func (s *LocalSink) Put(_ context.Context, obj Object) (string, error) {
	absPath := filepath.Join(s.root, filepath.FromSlash(obj.Key))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(absPath), ".put-*")
	if err != nil {
		return "", fmt.Errorf("create tmp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(obj.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close tmp file: %w", err)
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("move media: %w", err)
	}

	// Metadata lands in a sidecar file; the local backend has no object
	// attribute store.
	if len(obj.Metadata) > 0 {
		meta := map[string]any{"contentType": obj.ContentType, "metadata": obj.Metadata}
		raw, err := json.Marshal(meta)
		if err == nil {
			_ = os.WriteFile(absPath+".meta.json", raw, 0o644)
		}
	}

	return s.baseURL + "/media/" + obj.Key, nil
}
