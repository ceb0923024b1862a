// Package mediatype sniffs magic numbers to confirm a byte buffer matches
// the media class the client declared.
package mediatype

import (
	"bytes"
	"strings"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "webp": {}, "gif": {},
}

var videoExtensions = map[string]struct{}{
	"mp4": {}, "mov": {}, "m4v": {}, "webm": {}, "mkv": {},
}

// KindForContentType maps a declared MIME type to a media class.
// Returns false for anything outside the allowed set.
func KindForContentType(contentType string) (Kind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage, true
	case strings.HasPrefix(ct, "video/"):
		return KindVideo, true
	default:
		return "", false
	}
}

// AllowedExtension reports whether ext (without the dot) is in the
// whitelist for the media class.
func AllowedExtension(ext string, kind Kind) bool {
	e := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch kind {
	case KindImage:
		_, ok := imageExtensions[e]
		return ok
	case KindVideo:
		_, ok := videoExtensions[e]
		return ok
	default:
		return false
	}
}

// Match reports whether buf carries a container signature for the given
// media class. It must only be called on a buffer that starts at byte 0
// of the file: chunks past the first of a multi-chunk video carry no
// header and cannot be signature-checked.
func Match(buf []byte, kind Kind) bool {
	switch kind {
	case KindImage:
		return matchImage(buf)
	case KindVideo:
		return matchVideo(buf)
	default:
		return false
	}
}

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}
)

func matchImage(buf []byte) bool {
	if bytes.HasPrefix(buf, jpegMagic) {
		return true
	}
	if bytes.HasPrefix(buf, pngMagic) {
		return true
	}
	if len(buf) >= 12 && bytes.Equal(buf[8:12], []byte("WEBP")) {
		return true
	}
	if bytes.HasPrefix(buf, []byte("GIF87a")) || bytes.HasPrefix(buf, []byte("GIF89a")) {
		return true
	}
	return false
}

func matchVideo(buf []byte) bool {
	// MP4/MOV family: box names appear near the start but not at a fixed
	// offset, so scan the whole buffer.
	for _, atom := range [][]byte{[]byte("ftyp"), []byte("moov"), []byte("mdat")} {
		if bytes.Contains(buf, atom) {
			return true
		}
	}
	// WebM/Matroska EBML header.
	return bytes.HasPrefix(buf, ebmlMagic)
}
