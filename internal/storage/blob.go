// Package storage keeps raw uploads (roster CSVs) next to the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var ErrBadKey = errors.New("storage: invalid key")

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// RosterKey names the archived copy of a roster upload.
func RosterKey(profID string, at time.Time) string {
	return fmt.Sprintf("rosters/%s/%s.csv", profID, at.UTC().Format("20060102T150405.000Z"))
}

// cleanKey rejects empty, absolute and parent-escaping keys.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrBadKey
	}
	c := path.Clean(key)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrBadKey
	}
	return c, nil
}
