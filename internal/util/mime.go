package util

import (
	"bufio"
	"net/http"
	"strings"
)

// SniffMIME peeks at the first 512 bytes of r without consuming them.
func SniffMIME(r *bufio.Reader) string {
	head, _ := r.Peek(512)
	return http.DetectContentType(head)
}

// IsAvatarMIME reports whether the avatar decoder can read mimeType.
func IsAvatarMIME(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp":
		return true
	default:
		return false
	}
}

// IsAvatarExtension reports whether a client-supplied filename extension
// names a format the decoder accepts. Content is still sniffed.
func IsAvatarExtension(extension string) bool {
	switch strings.ToLower(strings.TrimSpace(extension)) {
	case ".jpg", ".jpeg", ".jpe", ".jfif", ".png", ".gif", ".webp", ".bmp":
		return true
	default:
		return false
	}
}
