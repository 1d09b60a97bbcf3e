package media

import (
	"context"

	"videoEditor/worker/domain"
)

// SourceInfo is the subset of ffprobe output the pipeline validates against.
type SourceInfo struct {
	Format    string
	SizeBytes int64
	Duration  float64
}

// Toolchain abstracts the external media operations so the pipeline can be
// exercised without ffmpeg installed. Every method overwrites its destination
// when it already exists, which keeps re-runs after a crash safe.
type Toolchain interface {
	// Download fetches the source video into destPath, enforcing the
	// configured size limit while streaming.
	Download(ctx context.Context, url, destPath string) error
	// Probe inspects a downloaded file and validates its container format.
	Probe(ctx context.Context, path string) (*SourceInfo, error)
	// Concat joins the segments in order using the requested transition.
	Concat(ctx context.Context, segments []string, style domain.TransitionStyle, destPath string) error
	// Overlay burns the customer text and/or a watermark image onto input.
	Overlay(ctx context.Context, inputPath, destPath, text, watermarkPath string) error
	// Encode re-encodes input with the preset's parameters.
	Encode(ctx context.Context, inputPath, destPath string, preset domain.Preset) error
}
