package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danfarias/ytgrab/internal/infra/logger"
	"github.com/danfarias/ytgrab/internal/registry"
	"github.com/danfarias/ytgrab/internal/storage"
)

const testRetention = 15 * time.Minute

func newTestSweeper(t *testing.T) (*Sweeper, *storage.Layout, *registry.Registry) {
	t.Helper()

	layout, err := storage.NewLayout(t.TempDir())
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	log, err := logger.New(filepath.Join(t.TempDir(), "test.log"), logger.LevelError, false)
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	reg := registry.New(20)
	s := New(layout, reg, log, testRetention, time.Minute)
	return s, layout, reg
}

func writeFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if age > 0 {
		past := time.Now().Add(-age)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}
	return path
}

func TestSweepRemovesExpiredKeepsYoung(t *testing.T) {
	s, layout, _ := newTestSweeper(t)

	dir, err := layout.UserDir("sess1")
	if err != nil {
		t.Fatalf("UserDir: %v", err)
	}
	expired := writeFile(t, dir, "old_1_sess1.mp3", 20*time.Minute)
	young := writeFile(t, dir, "new_2_sess1.mp3", time.Minute)

	if deleted := s.Sweep(); deleted != 1 {
		t.Fatalf("Sweep deleted %d, want 1", deleted)
	}
	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Error("expired file still present")
	}
	if _, err := os.Stat(young); err != nil {
		t.Errorf("young file should survive: %v", err)
	}
}

func TestSweepRemovesEmptyUserDir(t *testing.T) {
	s, layout, _ := newTestSweeper(t)

	dir, err := layout.UserDir("sess1")
	if err != nil {
		t.Fatalf("UserDir: %v", err)
	}

	s.Sweep()

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("empty user directory should be removed")
	}
}

func TestSweepRemovesDoublyStaleDir(t *testing.T) {
	s, layout, _ := newTestSweeper(t)

	dir, err := layout.UserDir("sess1")
	if err != nil {
		t.Fatalf("UserDir: %v", err)
	}
	// A fresh file keeps the directory non-empty; staleness of the directory
	// itself still wins once it passes twice the retention window.
	writeFile(t, dir, "fresh_1_sess1.mp4", 0)
	past := time.Now().Add(-2*testRetention - time.Minute)
	if err := os.Chtimes(dir, past, past); err != nil {
		t.Fatalf("chtimes dir: %v", err)
	}

	s.Sweep()

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("doubly-stale directory should be removed")
	}
}

func TestSweepKeepsRecentNonEmptyDir(t *testing.T) {
	s, layout, _ := newTestSweeper(t)

	dir, err := layout.UserDir("sess1")
	if err != nil {
		t.Fatalf("UserDir: %v", err)
	}
	writeFile(t, dir, "fresh_1_sess1.mp4", 0)

	s.Sweep()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("recent non-empty directory should survive: %v", err)
	}
}

func TestSweepRemovesStrayRootFiles(t *testing.T) {
	s, layout, _ := newTestSweeper(t)

	stray := writeFile(t, layout.Root, "orphan.mp3", 20*time.Minute)
	fresh := writeFile(t, layout.Root, "recent.mp3", 0)

	if deleted := s.Sweep(); deleted != 1 {
		t.Fatalf("Sweep deleted %d, want 1", deleted)
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Error("expired stray file still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh stray file should survive: %v", err)
	}
}

func TestSweepPrunesIdleSessions(t *testing.T) {
	now := time.Now()
	clock := now
	reg := registry.New(20, registry.WithClock(func() time.Time { return clock }))

	layout, err := storage.NewLayout(t.TempDir())
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	log, err := logger.New(filepath.Join(t.TempDir(), "test.log"), logger.LevelError, false)
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	s := New(layout, reg, log, testRetention, time.Minute)

	sess, _ := reg.ResolveOrCreateSession("")
	clock = now.Add(20 * time.Minute)

	s.Sweep()

	if reg.Has(sess) {
		t.Error("idle session should be pruned by the sweep")
	}
}

func TestCleanupSession(t *testing.T) {
	s, layout, _ := newTestSweeper(t)

	dir, err := layout.UserDir("sess1")
	if err != nil {
		t.Fatalf("UserDir: %v", err)
	}
	writeFile(t, dir, "old_1_sess1.mp3", 20*time.Minute)
	writeFile(t, dir, "old_2_sess1.mp4", 30*time.Minute)
	kept := writeFile(t, dir, "new_3_sess1.mp3", 0)

	otherDir, err := layout.UserDir("sess2")
	if err != nil {
		t.Fatalf("UserDir: %v", err)
	}
	untouched := writeFile(t, otherDir, "old_9_sess2.mp3", 20*time.Minute)

	if deleted := s.CleanupSession("sess1"); deleted != 2 {
		t.Fatalf("CleanupSession deleted %d, want 2", deleted)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("fresh file should survive: %v", err)
	}
	if _, err := os.Stat(untouched); err != nil {
		t.Errorf("other session's files must not be touched: %v", err)
	}
}

func TestExpiredAndExpiresIn(t *testing.T) {
	s, layout, _ := newTestSweeper(t)

	dir, err := layout.UserDir("sess1")
	if err != nil {
		t.Fatalf("UserDir: %v", err)
	}

	young := writeFile(t, dir, "young.mp3", 5*time.Minute)
	fi, err := os.Stat(young)
	if err != nil {
		t.Fatal(err)
	}
	if s.Expired(fi) {
		t.Error("5-minute-old file must not be expired under a 15-minute window")
	}
	if left := s.ExpiresIn(fi); left < 8 || left > 10 {
		t.Errorf("ExpiresIn = %d, want roughly 9", left)
	}

	old := writeFile(t, dir, "old.mp3", 20*time.Minute)
	fi, err = os.Stat(old)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Expired(fi) {
		t.Error("20-minute-old file must be expired")
	}
	if left := s.ExpiresIn(fi); left != 0 {
		t.Errorf("ExpiresIn for expired file = %d, want 0", left)
	}
}
