// Package store fetches original overlay images by locator.
//
// Every implementation reports a missing object by wrapping ErrNotFound and
// a refused read by wrapping ErrAccessDenied. Any other error is a transport
// failure the caller may retry.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means the locator names no object.
	ErrNotFound = errors.New("source image not found")

	// ErrAccessDenied means the backing store refused the read.
	ErrAccessDenied = errors.New("source image access denied")
)

// Locator identifies an original image: a bucket (or root namespace) and a
// key within it.
type Locator struct {
	Bucket string `json:"bucket" mapstructure:"bucket"`
	Key    string `json:"key" mapstructure:"key"`
}

func (l Locator) String() string {
	if l.Bucket == "" {
		return l.Key
	}
	return l.Bucket + "/" + l.Key
}

// Validate rejects locators that could escape their bucket.
func (l Locator) Validate() error {
	if l.Key == "" {
		return fmt.Errorf("key is required")
	}
	for _, part := range strings.Split(l.Bucket+"/"+l.Key, "/") {
		if part == ".." {
			return fmt.Errorf("locator %q must not contain '..'", l.String())
		}
	}
	return nil
}

// Fetcher reads original image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, loc Locator) ([]byte, error)
}
