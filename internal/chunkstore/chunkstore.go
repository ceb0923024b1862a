// Package chunkstore stages chunks of an in-flight upload until the full
// set has arrived. All cross-request state for an upload lives here; the
// store is the synchronization point between chunk requests.
package chunkstore

import (
	"context"
	"errors"
	"fmt"
)

// Offsets are zero-padded to a fixed width so chunk keys sort
// lexicographically in offset order. 12 digits covers files up to ~1TB.
const offsetKeyWidth = 12

var ErrNotFound = errors.New("upload session not found")

// ChunkInfo describes one staged chunk.
type ChunkInfo struct {
	Offset int64
	Size   int64
}

// Chunk is a staged chunk together with its payload.
type Chunk struct {
	Offset int64
	Data   []byte
}

// Store is the staging area for not-yet-assembled chunks.
// Implementations must allow concurrent Stage calls for distinct offsets
// of the same upload, and re-staging an identical chunk at the same
// offset must be a no-op rather than an error.
type Store interface {
	// Stage persists one chunk under uploadID. A Stage failure leaves
	// previously staged chunks intact.
	Stage(ctx context.Context, uploadID string, offset int64, data []byte) error

	// List enumerates staged chunks sorted by ascending offset.
	List(ctx context.Context, uploadID string) ([]ChunkInfo, error)

	// StagedBytes returns the sum of staged chunk sizes.
	StagedBytes(ctx context.Context, uploadID string) (int64, error)

	// ReadAll returns all staged chunks with payloads, sorted by offset.
	ReadAll(ctx context.Context, uploadID string) ([]Chunk, error)

	// Purge deletes the whole staging namespace. Purging a missing or
	// partially written namespace is not an error.
	Purge(ctx context.Context, uploadID string) error
}

func offsetKey(offset int64) string {
	return fmt.Sprintf("%0*d", offsetKeyWidth, offset)
}
