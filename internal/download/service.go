package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/danfarias/ytgrab/internal/domain"
	"github.com/danfarias/ytgrab/internal/infra/logger"
	"github.com/danfarias/ytgrab/internal/registry"
	"github.com/danfarias/ytgrab/internal/storage"
	"github.com/danfarias/ytgrab/internal/ytdlp"
)

// Fetcher is the slice of the tool client the service needs.
type Fetcher interface {
	FetchInfo(ctx context.Context, url string) (*ytdlp.VideoInfo, error)
	Download(ctx context.Context, url string, kind domain.MediaKind, outputPath string, onLine func(string)) error
}

// Service runs downloads as background tasks: one goroutine per accepted
// job, gated to maxActive concurrent downloads per session. Starting a
// download returns immediately; progress is observed by polling the
// registry.
type Service struct {
	reg       *registry.Registry
	layout    *storage.Layout
	fetcher   Fetcher
	log       *logger.Logger
	retention time.Duration
	maxActive int
	now       func() time.Time

	// Root context for all download tasks. Tearing down the service kills
	// the spawned processes via their per-job contexts.
	rootCtx context.Context
	stop    context.CancelFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // jobID -> cancel
	wg      sync.WaitGroup
}

func NewService(reg *registry.Registry, layout *storage.Layout, fetcher Fetcher, log *logger.Logger, retention time.Duration, maxActive int) *Service {
	if maxActive <= 0 {
		maxActive = 3
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		reg:       reg,
		layout:    layout,
		fetcher:   fetcher,
		log:       log,
		retention: retention,
		maxActive: maxActive,
		now:       time.Now,
		rootCtx:   ctx,
		stop:      cancel,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Start accepts a download request, enforces the per-session concurrency
// ceiling before any process is spawned, and launches the background task.
func (s *Service) Start(sessionID, url, option, customName string) (string, error) {
	if s.reg.ActiveDownloads(sessionID) >= s.maxActive {
		return "", domain.ErrTooManyActive
	}

	jobID, ok := s.reg.BeginJob(sessionID)
	if !ok {
		return "", fmt.Errorf("unknown session %s", sessionID)
	}

	kind := domain.ParseOption(option)

	jobCtx, cancel := context.WithCancel(s.rootCtx)
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.cancels, jobID)
			s.mu.Unlock()
		}()
		s.run(jobCtx, sessionID, jobID, url, kind, customName)
	}()

	return jobID, nil
}

// Cancel aborts a running job's subprocess. Returns false when the job is
// not running anymore.
func (s *Service) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[jobID]
	if ok {
		cancel()
	}
	return ok
}

// Shutdown cancels every in-flight download and waits for the tasks to
// observe it.
func (s *Service) Shutdown() {
	s.stop()
	s.wg.Wait()
}

// run is the download task. Every registry write it performs is a no-op if
// the session has been pruned mid-flight; the task finishes quietly either
// way.
func (s *Service) run(ctx context.Context, sessionID, jobID, url string, kind domain.MediaKind, customName string) {
	info, err := s.fetcher.FetchInfo(ctx, url)
	if err != nil {
		s.log.Warn("job %s: media info failed: %v", jobID, err)
		s.reg.FailJob(sessionID, jobID, fmt.Sprintf("Could not fetch media info: %v", err), "")
		return
	}

	baseName := customName
	if baseName == "" {
		baseName = info.Title
	}
	baseName = storage.SanitizeName(baseName)
	if baseName == "" {
		baseName = "download"
	}

	userDir, err := s.layout.UserDir(sessionID)
	if err != nil {
		s.log.Error("job %s: user directory: %v", jobID, err)
		s.reg.FailJob(sessionID, jobID, "Could not prepare download directory", "")
		return
	}

	finalName := storage.FinalName(baseName, sessionID, kind, s.now())
	finalPath, err := s.layout.Resolve(sessionID, finalName)
	if err != nil {
		s.log.Error("job %s: resolve final name: %v", jobID, err)
		s.reg.FailJob(sessionID, jobID, "Invalid output filename", "")
		return
	}
	tempPath := filepath.Join(userDir, storage.TempName(jobID, kind))

	s.reg.UpdateJob(sessionID, jobID, func(job *registry.JobStatus) {
		job.State = registry.StateDownloading
		job.Message = "Starting download..."
		job.Filename = finalName
		job.OriginalName = baseName
	})

	err = s.fetcher.Download(ctx, url, kind, tempPath, func(line string) {
		s.reg.AppendLog(sessionID, jobID, line)
		if percent, ok := ytdlp.ParseProgress(line); ok {
			s.reg.SetProgress(sessionID, jobID, percent, line)
		}
	})

	// Success is exit 0 AND the output file existing; anything else cleans
	// up the partial file and fails the job with the output tail.
	if err == nil {
		if _, statErr := os.Stat(tempPath); statErr != nil {
			err = &ytdlp.DownloadError{Err: fmt.Errorf("tool exited cleanly but produced no output")}
		}
	}
	if err != nil {
		_ = os.Remove(tempPath)
		var tail string
		var dlErr *ytdlp.DownloadError
		if errors.As(err, &dlErr) {
			tail = strings.Join(dlErr.Tail, "\n")
		}
		msg := "Download failed"
		if ctx.Err() != nil {
			msg = "Download cancelled"
		}
		s.log.Warn("job %s: %s: %v", jobID, msg, err)
		s.reg.FailJob(sessionID, jobID, msg, tail)
		return
	}

	// The rename is the only moment the final name appears on disk, so
	// consumers never observe a half-written file.
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		s.log.Error("job %s: finalize: %v", jobID, err)
		s.reg.FailJob(sessionID, jobID, "Could not finalize download", "")
		return
	}

	fi, err := os.Stat(finalPath)
	var size int64
	if err == nil {
		size = fi.Size()
	}

	now := s.now()
	s.reg.CompleteJob(sessionID, jobID, registry.DownloadRecord{
		JobID:        jobID,
		Filename:     finalName,
		OriginalName: baseName,
		FileSize:     size,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.retention),
	})
	s.log.Info("job %s: completed %s (%d bytes)", jobID, finalName, size)
}
