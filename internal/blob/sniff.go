package blob

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const sniffLen = 512

var extensions = map[string]string{
	"image/jpeg":   ".jpg",
	"image/png":    ".png",
	"image/gif":    ".gif",
	"image/webp":   ".webp",
	"image/bmp":    ".bmp",
	"image/avif":   ".avif",
	"image/x-icon": ".ico",
}

// Sniff inspects the leading bytes of r and rejects anything that is not an
// image. The returned reader replays the inspected bytes.
func Sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("read content: %w", err)
	}
	if n == 0 {
		return "", nil, ErrEmpty
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return "", nil, ErrNotImage
	}

	return contentType, io.MultiReader(bytes.NewReader(head), r), nil
}

// Extension maps a sniffed content type to a file extension, or "" if unknown.
func Extension(contentType string) string {
	return extensions[contentType]
}

// NewKey builds a collision-free object key scoped to the owner.
func NewKey(prefix, ownerID, contentType string) string {
	key := ownerID + "/" + uuid.NewString() + Extension(contentType)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}
