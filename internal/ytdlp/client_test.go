package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/danfarias/ytgrab/internal/domain"
)

// stubExecutor replays canned output lines and records the invocation
// instead of spawning a process.
type stubExecutor struct {
	lines  []string
	err    error
	binary string
	args   []string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	s.binary = binary
	s.args = args
	for _, line := range s.lines {
		if onLine != nil {
			onLine(line)
		}
	}
	return s.err
}

func newTestClient(t *testing.T, exec Executor) *Client {
	t.Helper()
	c, err := New("yt-dlp", "/opt/ffmpeg", 30*time.Second, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFetchInfoDecodesMetadata(t *testing.T) {
	stub := &stubExecutor{
		lines: []string{
			"WARNING: unable to extract channel id",
			`{"title":"Test Clip","uploader":"someone","duration":212.5,"view_count":12345,"thumbnail":"https://example.com/t.jpg"}`,
		},
	}
	c := newTestClient(t, stub)

	info, err := c.FetchInfo(context.Background(), "https://example.com/watch?v=abc")
	if err != nil {
		t.Fatalf("FetchInfo: %v", err)
	}
	if info.Title != "Test Clip" || info.Uploader != "someone" {
		t.Errorf("unexpected metadata: %+v", info)
	}
	if info.Duration != 212.5 || info.ViewCount != 12345 {
		t.Errorf("unexpected numbers: %+v", info)
	}

	if stub.binary != "yt-dlp" {
		t.Errorf("binary = %q", stub.binary)
	}
	want := []string{"--skip-download", "--dump-json", "https://example.com/watch?v=abc"}
	if fmt.Sprint(stub.args) != fmt.Sprint(want) {
		t.Errorf("args = %v, want %v", stub.args, want)
	}
}

func TestFetchInfoNoMetadataInOutput(t *testing.T) {
	stub := &stubExecutor{
		lines: []string{"ERROR: unsupported URL"},
	}
	c := newTestClient(t, stub)

	_, err := c.FetchInfo(context.Background(), "https://example.com/bad")
	if err == nil {
		t.Fatal("expected error for output without metadata")
	}
	if !strings.Contains(err.Error(), "unsupported URL") {
		t.Errorf("error should carry the tool output, got %v", err)
	}
}

func TestFetchInfoProcessFailure(t *testing.T) {
	stub := &stubExecutor{
		lines: []string{"ERROR: video unavailable"},
		err:   errors.New("exit status 1"),
	}
	c := newTestClient(t, stub)

	_, err := c.FetchInfo(context.Background(), "https://example.com/gone")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrInfoTimeout) {
		t.Error("process failure must not be reported as a timeout")
	}
}

// timeoutExecutor blocks until the context expires, like a hung process.
type timeoutExecutor struct{}

func (timeoutExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestFetchInfoTimeout(t *testing.T) {
	c, err := New("yt-dlp", "", 10*time.Millisecond, WithExecutor(timeoutExecutor{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.FetchInfo(context.Background(), "https://example.com/slow")
	if !errors.Is(err, domain.ErrInfoTimeout) {
		t.Fatalf("err = %v, want ErrInfoTimeout", err)
	}
}

func TestDownloadStreamsLinesAndKeepsTail(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("[download] line %d", i))
	}
	stub := &stubExecutor{lines: lines, err: errors.New("exit status 1")}
	c := newTestClient(t, stub)

	var streamed []string
	err := c.Download(context.Background(), "https://example.com/v", domain.KindAudio, "/tmp/out.mp3", func(line string) {
		streamed = append(streamed, line)
	})

	if len(streamed) != 30 {
		t.Errorf("streamed %d lines, want 30", len(streamed))
	}

	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("err = %v, want *DownloadError", err)
	}
	if len(dlErr.Tail) != 10 {
		t.Fatalf("tail length = %d, want 10", len(dlErr.Tail))
	}
	if dlErr.Tail[0] != "[download] line 20" || dlErr.Tail[9] != "[download] line 29" {
		t.Errorf("tail window wrong: %v", dlErr.Tail)
	}
}

func TestDownloadSuccessReturnsNil(t *testing.T) {
	stub := &stubExecutor{lines: []string{"[download] 100% of 5.00MiB"}}
	c := newTestClient(t, stub)

	if err := c.Download(context.Background(), "https://example.com/v", domain.KindVideoBest, "/tmp/out.mp4", nil); err != nil {
		t.Fatalf("Download: %v", err)
	}
}

func TestBuildArgsProfiles(t *testing.T) {
	hasPair := func(args []string, flag, value string) bool {
		for i := 0; i < len(args)-1; i++ {
			if args[i] == flag && args[i+1] == value {
				return true
			}
		}
		return false
	}
	has := func(args []string, flag string) bool {
		for _, a := range args {
			if a == flag {
				return true
			}
		}
		return false
	}

	tests := []struct {
		name  string
		kind  domain.MediaKind
		check func(t *testing.T, args []string)
	}{
		{
			name: "audio standard extracts mp3",
			kind: domain.KindAudio,
			check: func(t *testing.T, args []string) {
				if !has(args, "-x") || !hasPair(args, "--audio-format", "mp3") {
					t.Errorf("missing mp3 extraction flags: %v", args)
				}
				if has(args, "--embed-subs") {
					t.Errorf("audio profile must not embed subtitles: %v", args)
				}
			},
		},
		{
			name: "audio best extracts m4a at top quality",
			kind: domain.KindAudioBest,
			check: func(t *testing.T, args []string) {
				if !hasPair(args, "--audio-format", "m4a") || !hasPair(args, "--audio-quality", "0") {
					t.Errorf("missing m4a quality flags: %v", args)
				}
			},
		},
		{
			name: "video hd caps height at 1080",
			kind: domain.KindVideoHD,
			check: func(t *testing.T, args []string) {
				if !hasPair(args, "-f", "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best") {
					t.Errorf("missing 1080p format selector: %v", args)
				}
				if !has(args, "--embed-subs") || !hasPair(args, "--sub-langs", "es.*,en") {
					t.Errorf("missing subtitle flags: %v", args)
				}
			},
		},
		{
			name: "video best uses default format with subtitles",
			kind: domain.KindVideoBest,
			check: func(t *testing.T, args []string) {
				if has(args, "-f") {
					t.Errorf("video best must not pin a format: %v", args)
				}
				if !has(args, "--embed-subs") {
					t.Errorf("missing subtitle flags: %v", args)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubExecutor{}
			c := newTestClient(t, stub)

			if err := c.Download(context.Background(), "https://example.com/v", tt.kind, "/tmp/out", nil); err != nil {
				t.Fatalf("Download: %v", err)
			}
			args := stub.args

			if !hasPair(args, "--ffmpeg-location", "/opt/ffmpeg") {
				t.Errorf("missing ffmpeg location: %v", args)
			}
			if !hasPair(args, "-o", "/tmp/out") {
				t.Errorf("missing output path: %v", args)
			}
			for _, flag := range []string{"--embed-metadata", "--embed-thumbnail", "--embed-chapters"} {
				if !has(args, flag) {
					t.Errorf("missing %s: %v", flag, args)
				}
			}
			if !hasPair(args, "--sleep-interval", "5") || !hasPair(args, "--max-sleep-interval", "15") {
				t.Errorf("missing politeness sleeps: %v", args)
			}
			if args[len(args)-1] != "https://example.com/v" {
				t.Errorf("url must be the final argument: %v", args)
			}

			tt.check(t, args)
		})
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := New("  ", "", time.Second); err == nil {
		t.Fatal("expected error for blank binary")
	}
}
