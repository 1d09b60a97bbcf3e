package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"videoEditor/worker/domain"
)

// FFmpeg runs the real toolchain binaries. Tool stderr is logged, never
// surfaced in job errors.
type FFmpeg struct {
	logger         *zap.Logger
	httpClient     *http.Client
	ffmpegBin      string
	ffprobeBin     string
	maxSourceBytes int64
	allowedFormats map[string]bool
}

type FFmpegOptions struct {
	FFmpegBin      string
	FFprobeBin     string
	MaxSourceBytes int64
	AllowedFormats []string
	HTTPClient     *http.Client
}

func NewFFmpeg(opts FFmpegOptions, logger *zap.Logger) *FFmpeg {
	if opts.FFmpegBin == "" {
		opts.FFmpegBin = "ffmpeg"
	}
	if opts.FFprobeBin == "" {
		opts.FFprobeBin = "ffprobe"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	allowed := make(map[string]bool, len(opts.AllowedFormats))
	for _, f := range opts.AllowedFormats {
		allowed[strings.ToLower(f)] = true
	}
	return &FFmpeg{
		logger:         logger,
		httpClient:     opts.HTTPClient,
		ffmpegBin:      opts.FFmpegBin,
		ffprobeBin:     opts.FFprobeBin,
		maxSourceBytes: opts.MaxSourceBytes,
		allowedFormats: allowed,
	}
}

func (f *FFmpeg) Download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.NewError(domain.KindAcquireFailed, "invalid source url: %v", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.NewError(domain.KindAcquireFailed, "fetch source: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NewError(domain.KindAcquireFailed, "fetch source: HTTP %d", resp.StatusCode)
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return domain.NewError(domain.KindStorage, "create scratch file: %v", err)
	}
	defer dst.Close()

	// +1 so an exactly-at-limit file passes and an over-limit one is caught
	// without buffering the whole body.
	n, err := io.Copy(dst, io.LimitReader(resp.Body, f.maxSourceBytes+1))
	if err != nil {
		return domain.NewError(domain.KindAcquireFailed, "read source stream: %v", err)
	}
	if n > f.maxSourceBytes {
		return domain.NewError(domain.KindAcquireFailed, "source exceeds %d byte limit", f.maxSourceBytes)
	}

	f.logger.Info("source downloaded",
		zap.String("url", url),
		zap.Int64("bytes", n),
	)
	return nil
}

type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Size       string `json:"size"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (*SourceInfo, error) {
	out, err := f.run(ctx, f.ffprobeBin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, domain.NewError(domain.KindAcquireFailed, "probe source: %v", err)
	}

	info, err := parseProbeOutput(out)
	if err != nil {
		return nil, domain.NewError(domain.KindAcquireFailed, "probe source: %v", err)
	}
	if !formatAllowed(info.Format, f.allowedFormats) {
		return nil, domain.NewError(domain.KindAcquireFailed, "unsupported container format %q", info.Format)
	}
	if f.maxSourceBytes > 0 && info.SizeBytes > f.maxSourceBytes {
		return nil, domain.NewError(domain.KindAcquireFailed, "source exceeds %d byte limit", f.maxSourceBytes)
	}
	return info, nil
}

func parseProbeOutput(out []byte) (*SourceInfo, error) {
	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if p.Format.FormatName == "" {
		return nil, fmt.Errorf("no container format reported")
	}
	info := &SourceInfo{Format: p.Format.FormatName}
	if p.Format.Size != "" {
		if v, err := strconv.ParseInt(p.Format.Size, 10, 64); err == nil {
			info.SizeBytes = v
		}
	}
	if p.Format.Duration != "" {
		if v, err := strconv.ParseFloat(p.Format.Duration, 64); err == nil {
			info.Duration = v
		}
	}
	return info, nil
}

// formatAllowed matches ffprobe's comma-separated demuxer names against the
// configured whitelist. Matroska and webm share one demuxer, so "matroska"
// counts as "mkv".
func formatAllowed(formatName string, allowed map[string]bool) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, name := range strings.Split(formatName, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "matroska" {
			name = "mkv"
		}
		if allowed[name] {
			return true
		}
	}
	return false
}

func (f *FFmpeg) Concat(ctx context.Context, segments []string, style domain.TransitionStyle, destPath string) error {
	if len(segments) == 0 {
		return domain.NewError(domain.KindComposeFailed, "no segments to concatenate")
	}
	if len(segments) == 1 || style == domain.TransitionCut {
		return f.concatCopy(ctx, segments, destPath)
	}

	// xfade joins two inputs at a time, so fold the segment list pairwise.
	current := segments[0]
	for i := 1; i < len(segments); i++ {
		out := destPath
		if i < len(segments)-1 {
			out = fmt.Sprintf("%s.xfade%d.mp4", destPath, i)
		}
		if err := f.xfade(ctx, current, segments[i], style, out); err != nil {
			return err
		}
		current = out
	}
	return nil
}

func (f *FFmpeg) concatCopy(ctx context.Context, segments []string, destPath string) error {
	listPath := destPath + ".list.txt"
	if err := writeConcatList(listPath, segments); err != nil {
		return domain.NewError(domain.KindComposeFailed, "write concat list: %v", err)
	}
	defer os.Remove(listPath)

	if _, err := f.run(ctx, f.ffmpegBin, concatArgs(listPath, destPath)...); err != nil {
		return domain.NewError(domain.KindComposeFailed, "concatenate segments: %v", err)
	}
	return nil
}

func writeConcatList(listPath string, segments []string) error {
	var b strings.Builder
	for _, seg := range segments {
		abs, err := filepath.Abs(seg)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}
	return os.WriteFile(listPath, []byte(b.String()), 0o644)
}

func concatArgs(listPath, destPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		destPath,
	}
}

func (f *FFmpeg) xfade(ctx context.Context, first, second string, style domain.TransitionStyle, destPath string) error {
	if _, err := f.run(ctx, f.ffmpegBin, xfadeArgs(first, second, style, destPath)...); err != nil {
		return domain.NewError(domain.KindComposeFailed, "apply %s transition: %v", style, err)
	}
	return nil
}

func xfadeArgs(first, second string, style domain.TransitionStyle, destPath string) []string {
	transition := "fade"
	if style == domain.TransitionSlide {
		transition = "slideright"
	}
	return []string{
		"-y",
		"-i", first,
		"-i", second,
		"-filter_complex",
		fmt.Sprintf("[0:v][1:v]xfade=transition=%s:duration=1.0:offset=0[v]", transition),
		"-map", "[v]",
		"-c:v", "libx264", "-preset", "medium",
		destPath,
	}
}

func (f *FFmpeg) Overlay(ctx context.Context, inputPath, destPath, text, watermarkPath string) error {
	if text == "" && watermarkPath == "" {
		return domain.NewError(domain.KindComposeFailed, "nothing to overlay")
	}
	if _, err := f.run(ctx, f.ffmpegBin, overlayArgs(inputPath, destPath, text, watermarkPath)...); err != nil {
		return domain.NewError(domain.KindComposeFailed, "apply overlay: %v", err)
	}
	return nil
}

func overlayArgs(inputPath, destPath, text, watermarkPath string) []string {
	args := []string{"-y", "-i", inputPath}
	if watermarkPath != "" {
		args = append(args, "-i", watermarkPath)
	}
	args = append(args,
		"-filter_complex", overlayFilter(text, watermarkPath != ""),
		"-map", "[v]",
		"-map", "0:a?",
		"-c:a", "copy",
		destPath,
	)
	return args
}

// overlayFilter pins the watermark bottom-right and draws the customer text
// centered near the bottom edge.
func overlayFilter(text string, hasWatermark bool) string {
	var chains []string
	head := "[0:v]"
	if hasWatermark {
		out := "[v]"
		if text != "" {
			out = "[wm]"
		}
		chains = append(chains, head+"[1:v]overlay=main_w-overlay_w-10:main_h-overlay_h-10"+out)
		head = "[wm]"
	}
	if text != "" {
		chains = append(chains, fmt.Sprintf(
			"%sdrawtext=text='%s':fontcolor=white:fontsize=48:x=(w-text_w)/2:y=h-text_h-40[v]",
			head, escapeDrawtext(text)))
	}
	return strings.Join(chains, ";")
}

func escapeDrawtext(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`)
	return r.Replace(s)
}

func (f *FFmpeg) Encode(ctx context.Context, inputPath, destPath string, preset domain.Preset) error {
	if _, err := f.run(ctx, f.ffmpegBin, encodeArgs(inputPath, destPath, preset)...); err != nil {
		return domain.NewError(domain.KindEncodeFailed, "encode with preset %s: %v", preset.Name, err)
	}
	return nil
}

func encodeArgs(inputPath, destPath string, preset domain.Preset) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-c:v", preset.VideoCodec,
		"-preset", preset.Speed,
		"-crf", strconv.Itoa(preset.CRF),
	}
	if preset.Resolution != "" {
		args = append(args, "-s", preset.Resolution)
	}
	if preset.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(preset.FrameRate))
	}
	args = append(args,
		"-c:a", preset.AudioCodec,
		"-b:a", preset.AudioBitrate,
		"-pix_fmt", "yuv420p",
		destPath,
	)
	return args
}

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		f.logger.Error("toolchain invocation failed",
			zap.String("bin", bin),
			zap.Strings("args", args),
			zap.String("stderr", stderr.String()),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s exited: %w", filepath.Base(bin), err)
	}
	return stdout.Bytes(), nil
}
