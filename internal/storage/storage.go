// Package storage holds cover images and avatars behind a small blob interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

// PlaceholderCoverPath is the blob served for stories without a cover.
const PlaceholderCoverPath = "placeholders/cover.png"

// FilesRoute is the URL prefix under which blobs are served.
const FilesRoute = "/files/"

var ErrBlobNotFound = errors.New("blob not found")

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Path        string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// BlobStore stores blobs by path. Put replaces any blob already at path.
type BlobStore interface {
	Put(ctx context.Context, path, contentType string, r io.Reader) (*BlobInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, *BlobInfo, error)
	Delete(ctx context.Context, path string) error
}

// CoverPath builds covers/{identifier}-{unix ms}.{ext}.
func CoverPath(identifier, filename string, now time.Time) string {
	return withExt(fmt.Sprintf("covers/%s-%d", identifier, now.UnixMilli()), filename)
}

// AvatarPath builds avatars/{userID}.{ext}; a new upload overwrites the old one.
func AvatarPath(userID, filename string) string {
	return withExt("avatars/"+userID, filename)
}

func withExt(base, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return base + ext
}

// PublicURL returns the URL a client uses to download the blob at p.
func PublicURL(baseURL, p string) string {
	return strings.TrimRight(baseURL, "/") + FilesRoute + strings.TrimLeft(p, "/")
}

// ContentTypeFor falls back to the extension when no type was recorded.
func ContentTypeFor(p, recorded string) string {
	if recorded != "" {
		return recorded
	}
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ValidPath rejects empty paths and any path that escapes its prefix.
func ValidPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") {
		return false
	}
	return path.Clean(p) == p && !strings.HasPrefix(p, "..")
}
