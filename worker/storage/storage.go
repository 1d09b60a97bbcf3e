package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"time"
)

// ErrNotFound reports a reference that does not exist in the backend. Every
// other backend failure carries the storage error kind; retrying is the
// caller's decision, the backend never retries on its own.
var ErrNotFound = errors.New("storage: reference not found")

// Backend is the capability set shared by the local-filesystem and
// S3-compatible object storage variants. The variant is chosen once at
// process configuration, not per call.
type Backend interface {
	// Write stores the stream under key, overwriting any previous object,
	// and returns the stored reference.
	Write(ctx context.Context, key string, r io.Reader) (string, error)
	Read(ctx context.Context, ref string) (io.ReadCloser, error)
	// ResolveURL turns a stored reference into a downloadable URL. Object
	// storage issues a signed, time-limited URL; local storage returns a
	// path served by the surrounding web server, for which ttl is ignored.
	ResolveURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Key layout. Published results live apart from the asset library; scratch
// intermediates stay on local disk under the worker's temp dir and never
// enter the backend.

func ResultKey(jobID string) string {
	return path.Join("outputs", jobID+"_final.mp4")
}

func IntroKey(name string) string {
	return path.Join("assets", "intros", name)
}

func OutroKey(name string) string {
	return path.Join("assets", "outros", name)
}

func LogoKey(name string) string {
	return path.Join("assets", "logos", name)
}
