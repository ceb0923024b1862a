// Package assemble turns a complete set of staged chunks back into the
// original byte stream.
package assemble

import (
	"context"
	"errors"
	"fmt"

	"mediakeep/internal/chunkstore"
)

// ErrIntegrity marks a fatal assembly failure: a gap in the staged
// offsets or a length mismatch. The staging namespace is left alone so
// the session can be inspected; the TTL sweep reclaims it later.
var ErrIntegrity = errors.New("assembly integrity failure")

// Result is the outcome of one completion check. Exactly one of the two
// shapes is populated: Complete carries Data, Pending carries the counts.
type Result struct {
	Complete bool
	Data     []byte

	StagedCount   int
	ExpectedCount int
}

type Assembler struct {
	store     chunkstore.Store
	chunkSize int64
}

func New(store chunkstore.Store, chunkSize int64) *Assembler {
	return &Assembler{store: store, chunkSize: chunkSize}
}

// TryAssemble checks whether the session's chunk set is complete and, if
// so, concatenates the chunks in offset order. A Pending result is a
// normal state, not an error.
func (a *Assembler) TryAssemble(ctx context.Context, uploadID string, totalSize int64) (Result, error) {
	chunks, err := a.store.List(ctx, uploadID)
	if err != nil {
		return Result{}, fmt.Errorf("list staged chunks: %w", err)
	}

	expected := expectedChunks(totalSize, a.chunkSize)
	var staged int64
	for _, c := range chunks {
		staged += c.Size
	}

	if staged < totalSize && len(chunks) < expected {
		return Result{StagedCount: len(chunks), ExpectedCount: expected}, nil
	}

	all, err := a.store.ReadAll(ctx, uploadID)
	if err != nil {
		return Result{}, fmt.Errorf("read staged chunks: %w", err)
	}

	// Chunks come back offset-sorted; every chunk must begin exactly
	// where the previous one ended. A gap must fail loudly, never produce
	// a short or padded file.
	data := make([]byte, 0, staged)
	var next int64
	for _, c := range all {
		if c.Offset != next {
			return Result{}, fmt.Errorf("%w: upload %s expected chunk at offset %d, found %d", ErrIntegrity, uploadID, next, c.Offset)
		}
		data = append(data, c.Data...)
		next += int64(len(c.Data))
	}
	if int64(len(data)) != staged {
		return Result{}, fmt.Errorf("%w: upload %s assembled %d bytes, staged %d", ErrIntegrity, uploadID, len(data), staged)
	}

	return Result{Complete: true, Data: data, StagedCount: len(all), ExpectedCount: expected}, nil
}

func expectedChunks(totalSize, chunkSize int64) int {
	if totalSize <= 0 || chunkSize <= 0 {
		return 1
	}
	return int((totalSize + chunkSize - 1) / chunkSize)
}
