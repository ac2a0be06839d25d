// Package storage keeps uploaded and fetched media. The FileStore
// interface abstracts the backend so the HTTP layer can write to a local
// directory or an S3-compatible bucket without changing code.
//
// Media objects are stored under generated keys ([MediaKey]); the detector
// works on local files only, so [Localize] copies an object to a temporary
// file before decoding.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Keys are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named object for reading.
	// The caller must close the returned ReadCloser when done.
	// If the object does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Write opens the named object for writing, replacing any previous
	// content. The object becomes visible when the writer is closed.
	Write(ctx context.Context, key string) (io.WriteCloser, error)

	// Delete removes the named object. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether the named object exists.
	Exists(ctx context.Context, key string) (bool, error)
}

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("storage: invalid key")

// MediaPrefix is the key prefix for stored media.
const MediaPrefix = "input_media"

// MediaKey returns a fresh media key with the given file extension, e.g.
// "input_media/0b0c…e1.wav". The extension is lower-cased; an extension
// that is not a plain alphanumeric suffix is dropped.
func MediaKey(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !isPlainExt(ext) {
		ext = ""
	}
	key := MediaPrefix + "/" + uuid.NewString()
	if ext != "" {
		key += "." + ext
	}
	return key
}

func isPlainExt(ext string) bool {
	if ext == "" || len(ext) > 8 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// cleanKey validates a key and returns it in canonical form.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	c := path.Clean(key)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return c, nil
}

// Put copies r into the object at key and returns the number of bytes
// written. At most limit bytes are accepted when limit > 0; larger input
// fails with ErrTooLarge and the partial object is deleted.
func Put(ctx context.Context, s FileStore, key string, r io.Reader, limit int64) (int64, error) {
	w, err := s.Write(ctx, key)
	if err != nil {
		return 0, err
	}
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(w, src)
	if err == nil && limit > 0 && n > limit {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.Delete(ctx, key)
		return 0, err
	}
	return n, nil
}

// ErrTooLarge is returned by Put when the input exceeds its limit.
var ErrTooLarge = errors.New("storage: object too large")

// Localize makes the object at key available as a local file. The returned
// cleanup function removes any temporary copy and must always be called.
//
// Objects in a Local store are returned in place.
func Localize(ctx context.Context, s FileStore, key string) (string, func(), error) {
	noop := func() {}
	if l, ok := s.(*Local); ok {
		p, err := l.Path(key)
		if err != nil {
			return "", noop, err
		}
		if _, err := os.Stat(p); err != nil {
			return "", noop, err
		}
		return p, noop, nil
	}

	r, err := s.Read(ctx, key)
	if err != nil {
		return "", noop, err
	}
	defer r.Close()

	f, err := os.CreateTemp("", "deepscan-*"+path.Ext(key))
	if err != nil {
		return "", noop, fmt.Errorf("storage: localize %s: %w", key, err)
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("storage: localize %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("storage: localize %s: %w", key, err)
	}
	return f.Name(), cleanup, nil
}
