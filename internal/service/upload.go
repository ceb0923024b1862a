package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediakeep/internal/chunkstore"
	"mediakeep/internal/mediatype"
	"mediakeep/internal/quota"
	"mediakeep/internal/storage"
)

// UploadRequest is one inbound chunk (or single-shot) request.
// A single-shot upload carries ChunkStart==0 and TotalSize==0 and its
// whole payload in Data.
type UploadRequest struct {
	FileName    string
	ContentType string
	Extension   string
	ChunkStart  int64
	TotalSize   int64
	// Nonce is an optional client-generated session token mixed into the
	// upload identifier, so two concurrent uploads of an identically
	// named, identically sized file do not collide.
	Nonce string
	Data  []byte
}

// UploadResult is the response to one chunk request. Complete carries
// the terminal URL and size; a pending result carries staged/expected so
// the client keeps sending chunks.
type UploadResult struct {
	Complete      bool
	URL           string
	Size          int64
	ContentType   string
	StagedCount   int
	ExpectedCount int
}

// Upload runs one chunk request through the pipeline.
func (s *Service) Upload(ctx context.Context, principal Principal, req UploadRequest) (UploadResult, error) {
	kind, err := s.validate(principal, req)
	if err != nil {
		return UploadResult{}, err
	}

	acct, err := s.checkQuota(ctx, principal, req, kind)
	if err != nil {
		return UploadResult{}, err
	}

	if req.ChunkStart == 0 && req.TotalSize == 0 {
		// Single-shot: no staging, straight to the sink.
		return s.finish(ctx, acct, req, kind, req.Data, "")
	}

	uploadID := deriveUploadID(principal.ID, req.FileName, req.TotalSize, req.Nonce)
	if err := s.chunks.Stage(ctx, uploadID, req.ChunkStart, req.Data); err != nil {
		s.logger.Printf("stage failed upload=%s offset=%d: %v", uploadID, req.ChunkStart, err)
		return UploadResult{}, fmt.Errorf("stage chunk: %w", err)
	}

	// Collapse concurrent completion checks for this upload. Duplicate
	// delivery of the final chunk must assemble, sink and charge once.
	res, err, _ := s.finalize.Do(uploadID, func() (any, error) {
		asm, err := s.assembler.TryAssemble(ctx, uploadID, req.TotalSize)
		if err != nil {
			if errors.Is(err, chunkstore.ErrNotFound) {
				// A concurrent duplicate delivery finished and purged the
				// session between our Stage and this check. The upload is
				// done; report pending so a well-behaved retry just stops.
				return UploadResult{ExpectedCount: 1}, nil
			}
			s.logger.Printf("assembly failed upload=%s offset=%d: %v", uploadID, req.ChunkStart, err)
			return UploadResult{}, err
		}
		if !asm.Complete {
			return UploadResult{
				StagedCount:   asm.StagedCount,
				ExpectedCount: asm.ExpectedCount,
			}, nil
		}
		return s.finish(ctx, acct, req, kind, asm.Data, uploadID)
	})
	if err != nil {
		return UploadResult{}, err
	}
	return res.(UploadResult), nil
}

func (s *Service) validate(principal Principal, req UploadRequest) (mediatype.Kind, error) {
	if strings.TrimSpace(principal.ID) == "" {
		return "", fmt.Errorf("%w: missing principal", ErrInvalidInput)
	}
	if strings.TrimSpace(req.FileName) == "" {
		return "", fmt.Errorf("%w: fileName required", ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return "", fmt.Errorf("%w: empty upload body", ErrInvalidInput)
	}
	if req.ChunkStart < 0 || req.TotalSize < 0 {
		return "", fmt.Errorf("%w: negative offset or size", ErrInvalidInput)
	}
	if req.TotalSize > 0 && req.ChunkStart >= req.TotalSize {
		return "", fmt.Errorf("%w: chunkStart %d beyond declared size %d", ErrInvalidInput, req.ChunkStart, req.TotalSize)
	}

	kind, ok := mediatype.KindForContentType(req.ContentType)
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrInvalidInput, req.ContentType)
	}
	if !mediatype.AllowedExtension(req.Extension, kind) {
		return "", fmt.Errorf("%w: extension %q not allowed for %s uploads", ErrInvalidInput, req.Extension, kind)
	}

	// Signature checks only make sense on a buffer that starts at byte 0
	// of the file; a mid-stream chunk carries no container header. Chunked
	// uploads are therefore only whitelisted here and re-checked after
	// assembly.
	if req.ChunkStart == 0 && req.TotalSize == 0 && !mediatype.Match(req.Data, kind) {
		return "", fmt.Errorf("%w: buffer does not look like a %s file", ErrInvalidInput, kind)
	}
	return kind, nil
}

func (s *Service) checkQuota(ctx context.Context, principal Principal, req UploadRequest, kind mediatype.Kind) (quota.Account, error) {
	declared := req.TotalSize
	if n := int64(len(req.Data)); n > declared {
		declared = n
	}

	if declared > s.maxUploadBytes {
		return quota.Account{}, fmt.Errorf("%w: uploads are limited to %s", ErrTooLarge, quota.HumanSize(s.maxUploadBytes))
	}
	if fileCap := quota.FileCap(principal.Tier, kind); fileCap > 0 && declared > fileCap {
		return quota.Account{}, fmt.Errorf(
			"%w: %s files on the %s tier are limited to %s",
			ErrTooLarge, kind, principal.Tier, quota.HumanSize(fileCap),
		)
	}

	acct, err := s.ledger.Account(ctx, principal.ID)
	if err != nil {
		return quota.Account{}, fmt.Errorf("load quota account: %w", err)
	}
	limit := quota.StorageLimit(acct.Tier)
	if acct.BytesUsed+declared > limit {
		return quota.Account{}, fmt.Errorf(
			"%w: storing %s would exceed the %s limit of the %s tier",
			ErrQuotaExceeded, quota.HumanSize(declared), quota.HumanSize(limit), acct.Tier,
		)
	}
	return acct, nil
}

// finish writes the assembled (or single-shot) buffer to the sink,
// commits quota once and reclaims staging. uploadID is empty on the
// single-shot path.
func (s *Service) finish(ctx context.Context, acct quota.Account, req UploadRequest, kind mediatype.Kind, data []byte, uploadID string) (UploadResult, error) {
	// Chunked uploads could not be signature-checked per chunk; check the
	// assembled stream before committing anything durable.
	if uploadID != "" && !mediatype.Match(data, kind) {
		s.logger.Printf("post-assembly validation failed upload=%s", uploadID)
		return UploadResult{}, fmt.Errorf("%w: assembled file is not a valid %s", ErrInvalidInput, kind)
	}

	obj := storage.Object{
		Key:         objectKey(req.Extension),
		ContentType: req.ContentType,
		Metadata: map[string]string{
			"principal":    acct.Principal,
			"originalName": req.FileName,
		},
		Data: data,
	}

	url, err := s.putWithRetry(ctx, obj, uploadID)
	if err != nil {
		return UploadResult{}, err
	}

	// Exactly one charge per completed upload, for the final byte count.
	if err := s.ledger.Commit(ctx, acct.Principal, int64(len(data))); err != nil {
		s.logger.Printf("quota commit failed upload=%s principal=%s: %v", uploadID, acct.Principal, err)
		return UploadResult{}, fmt.Errorf("commit quota: %w", err)
	}

	if uploadID != "" {
		if err := s.chunks.Purge(ctx, uploadID); err != nil {
			// The sweep will reclaim it; the upload itself succeeded.
			s.logger.Printf("purge failed upload=%s: %v", uploadID, err)
		}
	}

	return UploadResult{
		Complete:    true,
		URL:         url,
		Size:        int64(len(data)),
		ContentType: req.ContentType,
	}, nil
}

func (s *Service) putWithRetry(ctx context.Context, obj storage.Object, uploadID string) (string, error) {
	delay := s.sinkRetryDelay
	var lastErr error
	for attempt := 1; attempt <= s.sinkAttempts; attempt++ {
		url, err := s.sink.Put(ctx, obj)
		if err == nil {
			return url, nil
		}
		lastErr = err
		s.logger.Printf("sink write failed upload=%s attempt=%d: %v", uploadID, attempt, err)
		if !storage.IsTransient(err) || attempt == s.sinkAttempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %v", ErrSinkUnavailable, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}
	return "", fmt.Errorf("%w: %v", ErrSinkUnavailable, lastErr)
}

// deriveUploadID builds the staging key for a session. The hash keeps it
// filesystem-safe regardless of what the client named the file.
func deriveUploadID(principal, fileName string, totalSize int64, nonce string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%s", principal, fileName, totalSize, nonce))
	return hex.EncodeToString(h[:])[:24]
}

// objectKey picks the durable storage key: random id sharded by its
// first two characters, keeping the original extension.
func objectKey(ext string) string {
	id := uuid.NewString()
	e := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	name := id
	if e != "" {
		name = id + "." + e
	}
	return path.Join(id[:2], name)
}
