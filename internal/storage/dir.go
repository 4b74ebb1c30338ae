// Package storage persists fetched resources under an artifact directory.
package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"pagevault/capture"
)

const defaultSubDir = "resources"

// DirStore implements capture.Persister over a directory tree. Files are
// named by the sha1 of their source URL, sharded by the first hex byte, with
// an extension derived from the media type. Oversized raster images are
// downscaled before writing when MaxImageDim is set.
type DirStore struct {
	Dir         string
	SubDir      string
	Fetcher     capture.Fetcher
	MaxImageDim int
	Logger      *log.Logger
}

// NewDirStore persists resources below dir using f for retrieval.
func NewDirStore(dir string, f capture.Fetcher) *DirStore {
	return &DirStore{Dir: dir, SubDir: defaultSubDir, Fetcher: f, Logger: log.Default()}
}

// Persist fetches url and writes it durably; the returned local reference is
// the artifact-relative path in slash form.
func (s *DirStore) Persist(ctx context.Context, url string) (string, error) {
	body, mediaType, err := s.Fetcher.FetchBytes(ctx, url)
	if err != nil {
		return "", &capture.StoreError{URL: url, Err: err}
	}
	if s.MaxImageDim > 0 && strings.HasPrefix(mediaType, "image/") {
		body, mediaType = s.shrink(body, mediaType)
	}

	sum := sha1.Sum([]byte(url))
	name := hex.EncodeToString(sum[:]) + extensionFor(mediaType)
	sub := s.SubDir
	if sub == "" {
		sub = defaultSubDir
	}
	rel := path.Join(sub, name[:2], name)
	full := filepath.Join(s.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", &capture.StoreError{URL: url, Err: err}
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", &capture.StoreError{URL: url, Err: err}
	}
	if err := os.Rename(tmp, full); err != nil {
		return "", &capture.StoreError{URL: url, Err: err}
	}
	return rel, nil
}

// shrink downscales an image whose longest side exceeds MaxImageDim,
// re-encoding as JPEG (PNG when the source was PNG). Anything that fails to
// decode passes through untouched.
func (s *DirStore) shrink(body []byte, mediaType string) ([]byte, string) {
	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return body, mediaType
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	max := s.MaxImageDim
	if w <= max && h <= max {
		return body, mediaType
	}
	if w >= h {
		h = h * max / w
		w = max
	} else {
		w = w * max / h
		h = max
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, dst); err != nil {
			return body, mediaType
		}
		return buf.Bytes(), "image/png"
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return body, mediaType
	}
	return buf.Bytes(), "image/jpeg"
}

var knownExtensions = map[string]string{
	"image/jpeg":             ".jpg",
	"image/png":              ".png",
	"image/gif":              ".gif",
	"image/webp":             ".webp",
	"image/svg+xml":          ".svg",
	"image/x-icon":           ".ico",
	"text/css":               ".css",
	"text/javascript":        ".js",
	"application/javascript": ".js",
	"font/woff2":             ".woff2",
	"font/woff":              ".woff",
	"font/ttf":               ".ttf",
	"video/mp4":              ".mp4",
}

func extensionFor(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if ext, ok := knownExtensions[mt]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
