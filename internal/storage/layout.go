package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danfarias/ytgrab/internal/domain"
)

// ErrOutsideUserDir is returned when a requested filename resolves outside
// the session's own directory.
var ErrOutsideUserDir = errors.New("path escapes user directory")

const maxBaseNameLen = 50

// Layout maps sessions onto isolated directories under a single root.
type Layout struct {
	Root string
}

func NewLayout(root string) (*Layout, error) {
	if root == "" {
		return nil, errors.New("download root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve download root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create download root: %w", err)
	}
	return &Layout{Root: abs}, nil
}

// SanitizeName strips the characters that are illegal in filenames on the
// common filesystems. Everything else is preserved as-is.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		return r
	}, name)
}

// UserDir returns the session's directory, creating it if missing.
// The mapping is deterministic: one session, one directory.
func (l *Layout) UserDir(sessionID string) (string, error) {
	dir := filepath.Join(l.Root, "user_"+sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create user directory: %w", err)
	}
	return dir, nil
}

// FinalName builds a collision-resistant filename for a finished download:
// the sanitized base truncated to 50 characters, a unix timestamp, the first
// 8 characters of the session id, and the extension implied by the kind.
func FinalName(baseName, sessionID string, kind domain.MediaKind, now time.Time) string {
	safe := SanitizeName(baseName)
	if len(safe) > maxBaseNameLen {
		safe = safe[:maxBaseNameLen]
	}
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%d_%s%s", safe, now.Unix(), short, kind.Ext())
}

// TempName is the output name the external tool writes to before the atomic
// rename into FinalName.
func TempName(jobID string, kind domain.MediaKind) string {
	return "temp_" + jobID + kind.Ext()
}

// Resolve joins filename onto the session's directory and verifies the
// result stays inside it. Crafted names like "../../etc/passwd" fail here.
func (l *Layout) Resolve(sessionID, filename string) (string, error) {
	dir, err := l.UserDir(sessionID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filename)
	if !strings.HasPrefix(path, dir+string(os.PathSeparator)) {
		return "", ErrOutsideUserDir
	}
	// Join cleans the path, so anything that climbed out of dir lands in a
	// different parent and fails here.
	if filepath.Dir(path) != dir {
		return "", ErrOutsideUserDir
	}
	return path, nil
}
