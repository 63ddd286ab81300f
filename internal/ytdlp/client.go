package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danfarias/ytgrab/internal/domain"
)

// VideoInfo is the subset of the tool's metadata dump the API surfaces.
type VideoInfo struct {
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Duration  float64 `json:"duration"`
	ViewCount int64   `json:"view_count"`
	Thumbnail string  `json:"thumbnail"`
}

// DownloadError carries the tail of the process output for diagnostics.
type DownloadError struct {
	Err  error
	Tail []string
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download failed: %v", e.Err)
	}
	return "download failed"
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Client wraps the external download tool. The transcoder lives alongside
// it and is handed over via --ffmpeg-location; the tool invokes it itself.
type Client struct {
	binary      string
	ffmpegDir   string
	infoTimeout time.Duration
	exec        Executor
}

type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

func New(binary, ffmpegDir string, infoTimeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("downloader binary required")
	}
	if infoTimeout <= 0 {
		infoTimeout = 30 * time.Second
	}
	c := &Client{
		binary:      binary,
		ffmpegDir:   ffmpegDir,
		infoTimeout: infoTimeout,
		exec:        commandExecutor{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchInfo runs the tool in metadata-only mode under the info timeout and
// decodes its JSON dump.
func (c *Client) FetchInfo(ctx context.Context, url string) (*VideoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.infoTimeout)
	defer cancel()

	args := []string{"--skip-download", "--dump-json", url}

	var lines []string
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrInfoTimeout
		}
		return nil, fmt.Errorf("fetch media info: %v: %s", err, outputExcerpt(lines))
	}

	// --dump-json emits the metadata as a single JSON line; warnings may
	// precede it, so scan for the first line that decodes.
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}
		var info VideoInfo
		if jsonErr := json.Unmarshal([]byte(trimmed), &info); jsonErr == nil {
			return &info, nil
		}
	}
	return nil, fmt.Errorf("no metadata in tool output: %s", outputExcerpt(lines))
}

// Download runs the tool with the kind's argument profile, streaming every
// output line to onLine. The caller owns the success contract (exit code
// plus output-file existence); Download only reports the process outcome,
// attaching the last lines of output on failure.
func (c *Client) Download(ctx context.Context, url string, kind domain.MediaKind, outputPath string, onLine func(string)) error {
	args := c.buildArgs(url, kind, outputPath)

	tail := make([]string, 0, diagnosticTail)
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		tail = append(tail, line)
		if len(tail) > diagnosticTail {
			tail = tail[len(tail)-diagnosticTail:]
		}
		if onLine != nil {
			onLine(line)
		}
	})
	if err != nil {
		return &DownloadError{Err: err, Tail: append([]string(nil), tail...)}
	}
	return nil
}

const diagnosticTail = 10

// buildArgs assembles one of the four fixed option profiles. Every profile
// embeds metadata, thumbnail and chapters and keeps the politeness sleeps
// so repeated fetches do not hammer the source site.
func (c *Client) buildArgs(url string, kind domain.MediaKind, outputPath string) []string {
	args := []string{}
	if c.ffmpegDir != "" {
		args = append(args, "--ffmpeg-location", c.ffmpegDir)
	}
	args = append(args, "-o", outputPath)

	switch kind {
	case domain.KindAudio:
		args = append(args, "-x", "--audio-format", "mp3")
	case domain.KindAudioBest:
		args = append(args, "-x", "--audio-format", "m4a", "--audio-quality", "0")
	case domain.KindVideoHD:
		args = append(args, "-f", "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best")
	}

	args = append(args, "--embed-metadata", "--embed-thumbnail", "--embed-chapters")

	if kind == domain.KindVideoHD || kind == domain.KindVideoBest {
		args = append(args, "--embed-subs", "--sub-langs", "es.*,en")
	}

	args = append(args,
		"--sleep-interval", "5",
		"--max-sleep-interval", "15",
		url,
	)
	return args
}

func outputExcerpt(lines []string) string {
	joined := strings.Join(lines, " ")
	if len(joined) > 200 {
		joined = joined[:200]
	}
	return joined
}
