package janitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danfarias/ytgrab/internal/infra/logger"
	"github.com/danfarias/ytgrab/internal/registry"
	"github.com/danfarias/ytgrab/internal/storage"
)

// Sweeper reclaims expired files, stale user directories, and pruned
// sessions on a fixed interval. Individual failures are logged and skipped;
// a sweep never aborts early.
type Sweeper struct {
	layout    *storage.Layout
	reg       *registry.Registry
	log       *logger.Logger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

type Option func(*Sweeper)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func New(layout *storage.Layout, reg *registry.Registry, log *logger.Logger, retention, interval time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		layout:    layout,
		reg:       reg,
		log:       log,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted := s.Sweep()
			if deleted > 0 {
				s.log.Info("sweep removed %d expired item(s)", deleted)
			}
		}
	}
}

// Sweep walks the whole download tree once: expired files inside user
// directories go first, then empty or doubly-stale directories, then stray
// files directly under the root (the legacy flat layout). Finally idle
// sessions are pruned from the registry. Returns how many files were
// deleted.
func (s *Sweeper) Sweep() int {
	deleted := 0

	entries, err := os.ReadDir(s.layout.Root)
	if err != nil {
		s.log.Error("sweep: read download root: %v", err)
		return 0
	}

	for _, entry := range entries {
		path := filepath.Join(s.layout.Root, entry.Name())

		if entry.IsDir() && strings.HasPrefix(entry.Name(), "user_") {
			deleted += s.sweepUserDir(path)
			s.maybeRemoveDir(path)
			continue
		}

		if !entry.IsDir() {
			if s.removeIfExpired(path) {
				deleted++
			}
		}
	}

	if pruned := s.reg.PruneIdle(s.retention); pruned > 0 {
		s.log.Info("sweep pruned %d idle session(s)", pruned)
	}

	return deleted
}

// CleanupSession is the manual, on-demand variant: it clears expired files
// from one session's directory and runs the global registry prune.
func (s *Sweeper) CleanupSession(sessionID string) int {
	dir, err := s.layout.UserDir(sessionID)
	if err != nil {
		s.log.Error("cleanup: user directory for %s: %v", sessionID, err)
		return 0
	}
	deleted := s.sweepUserDir(dir)
	s.reg.PruneIdle(s.retention)
	return deleted
}

func (s *Sweeper) sweepUserDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Error("sweep: read %s: %v", dir, err)
		return 0
	}
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s.removeIfExpired(filepath.Join(dir, entry.Name())) {
			deleted++
		}
	}
	return deleted
}

// maybeRemoveDir drops a user directory once it is empty, or when the
// directory itself has gone untouched for twice the retention window.
func (s *Sweeper) maybeRemoveDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Error("sweep: read %s: %v", dir, err)
		return
	}

	stale := false
	if fi, err := os.Stat(dir); err == nil {
		stale = s.now().Sub(fi.ModTime()) > 2*s.retention
	}

	if len(entries) == 0 || stale {
		if err := os.RemoveAll(dir); err != nil {
			s.log.Error("sweep: remove %s: %v", dir, err)
			return
		}
		s.log.Info("sweep removed directory %s", filepath.Base(dir))
	}
}

func (s *Sweeper) removeIfExpired(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		s.log.Error("sweep: stat %s: %v", path, err)
		return false
	}
	if s.now().Sub(fi.ModTime()) <= s.retention {
		return false
	}
	if err := os.Remove(path); err != nil {
		s.log.Error("sweep: remove %s: %v", path, err)
		return false
	}
	s.log.Info("sweep removed expired file %s", filepath.Base(path))
	return true
}

// Expired reports whether a file's last-modified age exceeds the retention
// window. Serving handlers re-check this at request time.
func (s *Sweeper) Expired(fi os.FileInfo) bool {
	return s.now().Sub(fi.ModTime()) > s.retention
}

// ExpiresIn returns the whole minutes left before a file expires, floored
// at zero.
func (s *Sweeper) ExpiresIn(fi os.FileInfo) int {
	left := s.retention - s.now().Sub(fi.ModTime())
	if left < 0 {
		return 0
	}
	return int(left.Minutes())
}
