package platform

import (
	"fmt"
	"os"
	"os/exec"
)

// RequiredBinaries lists the external tools the app cannot run without: the
// downloader itself and the transcoder it shells out to.
var RequiredBinaries = []string{
	"yt-dlp",
	"ffmpeg",
}

// OptionalBinaries are nice to have; their absence only costs features.
var OptionalBinaries = map[string]string{
	"ffprobe": "media inspection",
}

// ValidateDependencies resolves the configured downloader path (or falls
// back to PATH lookup) and verifies the transcoder is reachable.
func ValidateDependencies(ytdlpPath string) error {
	if ytdlpPath != "" && ytdlpPath != "yt-dlp" {
		if _, err := os.Stat(ytdlpPath); err != nil {
			return fmt.Errorf("configured downloader not found at %s: %w", ytdlpPath, err)
		}
	} else if _, err := exec.LookPath("yt-dlp"); err != nil {
		return fmt.Errorf("required dependency 'yt-dlp' not found in PATH")
	}

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("required dependency 'ffmpeg' not found in PATH")
	}

	for bin, feature := range OptionalBinaries {
		if _, err := exec.LookPath(bin); err != nil {
			fmt.Printf("Info: %s not found. %s will be unavailable.\n", bin, feature)
		}
	}

	return nil
}
