// Package uploader is the client half of the upload pipeline. It
// splits a local file into fixed-size chunks, posts them sequentially
// with per-chunk retries and reports progress until the server
// confirms the assembled object.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultChunkSize  = 10 * units.MiB
	defaultMaxRetries = 3
)

type Options struct {
	// ChunkSize is the stage size in bytes. Files at or under it go up
	// in a single request.
	ChunkSize int64
	// MaxRetries bounds the retry attempts per chunk request.
	MaxRetries int
	// Token is sent as a bearer credential on every request.
	Token string
	// OnProgress, when set, receives a monotone percentage. It stays
	// under 100 until the server confirms the upload is complete.
	OnProgress func(pct int)
	Logger     *log.Logger
	// HTTPClient overrides the underlying transport, mainly for tests.
	HTTPClient *http.Client
}

// Result is the server's confirmation of a finished upload.
type Result struct {
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"type"`
}

type chunkResponse struct {
	URL      string `json:"url"`
	Complete bool   `json:"complete"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	Progress string `json:"progress"`
	Error    string `json:"error"`
}

type Client struct {
	endpoint   string
	token      string
	chunkSize  int64
	onProgress func(pct int)
	logger     *log.Logger
	http       *retryablehttp.Client
}

// New builds a Client for the media endpoint, e.g.
// "https://host/api/v1/media".
func New(endpoint string, opts Options) *Client {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.MaxRetries
	rc.RetryWaitMin = time.Second
	rc.RetryWaitMax = time.Duration(1<<opts.MaxRetries) * time.Second
	rc.Backoff = expBackoff
	rc.Logger = nil
	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	}

	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      opts.Token,
		chunkSize:  opts.ChunkSize,
		onProgress: opts.OnProgress,
		logger:     opts.Logger,
		http:       rc,
	}
}

// expBackoff doubles the wait per attempt: 1s, 2s, 4s, ...
func expBackoff(min, max time.Duration, attemptNum int, _ *http.Response) time.Duration {
	wait := time.Duration(1<<attemptNum) * time.Second
	if wait < min {
		wait = min
	}
	if wait > max {
		wait = max
	}
	return wait
}

// UploadFile uploads the file at path. The content type is derived
// from the extension when empty.
func (c *Client) UploadFile(ctx context.Context, path, contentType string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if contentType == "" {
		contentType = contentTypeForExt(filepath.Ext(path))
	}
	return c.Upload(ctx, f, info.Size(), filepath.Base(path), contentType)
}

// Upload sends size bytes from r as fileName. Small payloads go in one
// request; anything larger is staged chunk by chunk under a fresh
// session nonce so a parallel upload of the same file cannot collide.
func (c *Client) Upload(ctx context.Context, r io.Reader, size int64, fileName, contentType string) (Result, error) {
	if size <= 0 {
		return Result{}, fmt.Errorf("upload %s: size must be positive", fileName)
	}
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")

	if size <= c.chunkSize {
		data, err := io.ReadAll(io.LimitReader(r, size))
		if err != nil {
			return Result{}, fmt.Errorf("read %s: %w", fileName, err)
		}
		resp, err := c.postChunk(ctx, chunkRequest{
			fileName:    fileName,
			contentType: contentType,
			extension:   ext,
			data:        data,
		})
		if err != nil {
			return Result{}, err
		}
		if !resp.Complete {
			return Result{}, fmt.Errorf("upload %s: server did not confirm single-shot upload", fileName)
		}
		c.report(100)
		return Result{URL: resp.URL, Size: resp.Size, ContentType: resp.Type}, nil
	}

	nonce := uuid.NewString()
	buf := make([]byte, c.chunkSize)
	lastPct := 0

	for offset := int64(0); offset < size; offset += c.chunkSize {
		n := c.chunkSize
		if offset+n > size {
			n = size - offset
		}
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return Result{}, fmt.Errorf("read %s at %d: %w", fileName, offset, err)
		}

		resp, err := c.postChunk(ctx, chunkRequest{
			chunkStart:  offset,
			totalSize:   size,
			fileName:    fileName,
			contentType: contentType,
			extension:   ext,
			nonce:       nonce,
			data:        buf[:n],
		})
		if err != nil {
			return Result{}, fmt.Errorf("chunk at %d: %w", offset, err)
		}

		if resp.Complete {
			c.report(100)
			return Result{URL: resp.URL, Size: resp.Size, ContentType: resp.Type}, nil
		}

		pct := progressPct(offset+n, size)
		if pct > lastPct {
			lastPct = pct
			c.report(pct)
		}
		c.logger.Printf("uploaded %s of %s (%s)",
			units.BytesSize(float64(offset+n)), units.BytesSize(float64(size)), resp.Progress)
	}

	return Result{}, fmt.Errorf("upload %s: all chunks staged but server never confirmed completion", fileName)
}

// progressPct holds at 99 until the server confirms, since the final
// staged byte still has assembly and the durable write ahead of it.
func progressPct(sent, total int64) int {
	pct := int(sent * 100 / total)
	if pct > 99 {
		pct = 99
	}
	return pct
}

func (c *Client) report(pct int) {
	if c.onProgress != nil {
		c.onProgress(pct)
	}
}

type chunkRequest struct {
	chunkStart  int64
	totalSize   int64
	fileName    string
	contentType string
	extension   string
	nonce       string
	data        []byte
}

func (c *Client) postChunk(ctx context.Context, cr chunkRequest) (chunkResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"chunkStart":    strconv.FormatInt(cr.chunkStart, 10),
		"totalSize":     strconv.FormatInt(cr.totalSize, 10),
		"fileName":      cr.fileName,
		"contentType":   cr.contentType,
		"fileExtension": cr.extension,
	}
	if cr.nonce != "" {
		fields["uploadNonce"] = cr.nonce
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return chunkResponse{}, fmt.Errorf("build form: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", cr.fileName)
	if err != nil {
		return chunkResponse{}, fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(cr.data); err != nil {
		return chunkResponse{}, fmt.Errorf("build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return chunkResponse{}, fmt.Errorf("build form: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body.Bytes())
	if err != nil {
		return chunkResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return chunkResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1*units.MiB))
	if err != nil {
		return chunkResponse{}, fmt.Errorf("read response: %w", err)
	}

	var parsed chunkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return chunkResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return chunkResponse{}, fmt.Errorf("server rejected chunk: %s (status %d)", msg, resp.StatusCode)
	}
	return parsed, nil
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "mp4", "m4v":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "webm":
		return "video/webm"
	case "mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
