// Package service orchestrates the upload pipeline: request validation,
// quota checks, chunk staging, assembly, the durable-store write and the
// one-time quota commit.
package service

import (
	"io"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"mediakeep/internal/assemble"
	"mediakeep/internal/chunkstore"
	"mediakeep/internal/quota"
	"mediakeep/internal/storage"
)

const (
	defaultSinkAttempts   = 3
	defaultSinkRetryDelay = 500 * time.Millisecond
)

// Principal is the authenticated uploader.
type Principal struct {
	ID   string
	Tier string
}

type Service struct {
	chunks    chunkstore.Store
	assembler *assemble.Assembler
	sink      storage.Sink
	ledger    quota.Ledger

	chunkSize      int64
	maxUploadBytes int64

	sinkAttempts   int
	sinkRetryDelay time.Duration

	// finalize collapses duplicate completion attempts for one uploadId
	// so assembly, the sink write and the quota commit run once even when
	// the final chunk is re-delivered concurrently.
	finalize singleflight.Group

	logger *log.Logger
}

type Options struct {
	ChunkSize      int64
	MaxUploadBytes int64
	SinkAttempts   int
	SinkRetryDelay time.Duration
	Logger         *log.Logger
}

func New(chunks chunkstore.Store, sink storage.Sink, ledger quota.Ledger, opts Options) *Service {
	if opts.SinkAttempts <= 0 {
		opts.SinkAttempts = defaultSinkAttempts
	}
	if opts.SinkRetryDelay <= 0 {
		opts.SinkRetryDelay = defaultSinkRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		chunks:         chunks,
		assembler:      assemble.New(chunks, opts.ChunkSize),
		sink:           sink,
		ledger:         ledger,
		chunkSize:      opts.ChunkSize,
		maxUploadBytes: opts.MaxUploadBytes,
		sinkAttempts:   opts.SinkAttempts,
		sinkRetryDelay: opts.SinkRetryDelay,
		logger:         opts.Logger,
	}
}
