package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"mediakeep/internal/auth"
	"mediakeep/internal/service"
)

// Upload accepts one chunk (or a whole single-shot file) as multipart
// form data and runs it through the pipeline.
func (h *Handler) Upload(c echo.Context) error {
	claims, ok := auth.GetClaims(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := c.Request().ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}

	header, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file part is required")
	}
	if header.Size > h.cfg.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	f, err := header.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid uploaded file")
	}
	data, readErr := io.ReadAll(io.LimitReader(f, h.cfg.MaxUploadBytes+1))
	_ = f.Close()
	if readErr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}
	if int64(len(data)) > h.cfg.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	chunkStart, err := formInt64(c, "chunkStart")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chunkStart")
	}
	totalSize, err := formInt64(c, "totalSize")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid totalSize")
	}

	fileName := strings.TrimSpace(c.FormValue("fileName"))
	if fileName == "" {
		fileName = header.Filename
	}
	contentType := strings.TrimSpace(c.FormValue("contentType"))
	if contentType == "" {
		contentType = header.Header.Get(echo.HeaderContentType)
	}
	extension := strings.TrimSpace(c.FormValue("fileExtension"))
	if extension == "" {
		extension = strings.TrimPrefix(filepath.Ext(fileName), ".")
	}

	result, err := h.svc.Upload(
		c.Request().Context(),
		service.Principal{ID: claims.Subject, Tier: claims.Tier},
		service.UploadRequest{
			FileName:    fileName,
			ContentType: contentType,
			Extension:   extension,
			ChunkStart:  chunkStart,
			TotalSize:   totalSize,
			Nonce:       strings.TrimSpace(c.FormValue("uploadNonce")),
			Data:        data,
		},
	)
	if err != nil {
		return mapUploadError(err)
	}

	if !result.Complete {
		return c.JSON(http.StatusOK, map[string]any{
			"complete": false,
			"progress": fmt.Sprintf("%d/%d", result.StagedCount, result.ExpectedCount),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"url":      result.URL,
		"complete": true,
		"size":     result.Size,
		"type":     result.ContentType,
	})
}

func (h *Handler) Whoami(c echo.Context) error {
	claims, ok := auth.GetClaims(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"principal": claims.Subject,
		"tier":      claims.Tier,
	})
}
