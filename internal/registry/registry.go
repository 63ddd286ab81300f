package registry

import (
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

type JobState string

const (
	StateQueued      JobState = "queued"
	StateDownloading JobState = "downloading"
	StateCompleted   JobState = "completed"
	StateError       JobState = "error"
)

const logRingCap = 100

// JobStatus tracks one download from acceptance to completion. It is only
// mutated through Registry methods; handlers read copies via JobSnapshot.
type JobStatus struct {
	ID           string     `json:"id"`
	State        JobState   `json:"status"`
	Progress     float64    `json:"progress"`
	Message      string     `json:"message"`
	Logs         []string   `json:"logs,omitempty"`
	StartedAt    time.Time  `json:"start_time"`
	CompletedAt  *time.Time `json:"complete_time,omitempty"`
	Filename     string     `json:"filename,omitempty"`
	OriginalName string     `json:"original_name,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
	ErrorOutput  string     `json:"error_output,omitempty"`
}

// DownloadRecord is one entry in a session's completed history.
type DownloadRecord struct {
	JobID        string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	FileSize     int64     `json:"file_size"`
	CreatedAt    time.Time `json:"created"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type session struct {
	id        string
	createdAt time.Time
	// lastSeen drives pruning. Keying expiry off creation time would drop
	// sessions that still have downloads in flight.
	lastSeen time.Time
	jobs     map[string]*JobStatus
	history  []DownloadRecord
}

// Registry is the single source of truth for session and job state. All
// state is in-memory and dies with the process. One coarse mutex guards the
// whole map; no method performs I/O while holding it.
type Registry struct {
	mu           sync.Mutex
	sessions     map[string]*session
	historyLimit int
	now          func() time.Time
}

type Option func(*Registry)

// WithClock injects a time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func New(historyLimit int, opts ...Option) *Registry {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	r := &Registry{
		sessions:     make(map[string]*session),
		historyLimit: historyLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveOrCreateSession validates a token from the cookie boundary. An
// unknown or empty token yields a fresh session; a known one refreshes its
// last-activity stamp. Cookie issuance is the caller's concern.
func (r *Registry) ResolveOrCreateSession(token string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token != "" {
		if s, ok := r.sessions[token]; ok {
			s.lastSeen = r.now()
			return token, false
		}
	}

	id := ksuid.New().String()
	now := r.now()
	r.sessions[id] = &session{
		id:        id,
		createdAt: now,
		lastSeen:  now,
		jobs:      make(map[string]*JobStatus),
	}
	return id, true
}

// Has reports whether the session is still tracked.
func (r *Registry) Has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// BeginJob registers a queued job and returns its id. The id is unique
// within the session for the session's lifetime.
func (r *Registry) BeginJob(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	jobID := ksuid.New().String()
	s.jobs[jobID] = &JobStatus{
		ID:        jobID,
		State:     StateQueued,
		Message:   "Queued",
		StartedAt: r.now(),
	}
	s.lastSeen = r.now()
	return jobID, true
}

// UpdateJob applies mutate under the lock. It is a silent no-op when the
// session or job has been pruned; in-flight download goroutines must never
// crash because their session vanished mid-sweep.
func (r *Registry) UpdateJob(sessionID, jobID string, mutate func(*JobStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	mutate(job)
}

// AppendLog pushes a process output line onto the job's bounded ring,
// evicting oldest-first past the cap.
func (r *Registry) AppendLog(sessionID, jobID, line string) {
	r.UpdateJob(sessionID, jobID, func(job *JobStatus) {
		job.Logs = append(job.Logs, line)
		if len(job.Logs) > logRingCap {
			job.Logs = job.Logs[len(job.Logs)-logRingCap:]
		}
	})
}

// SetProgress records a parsed progress line.
func (r *Registry) SetProgress(sessionID, jobID string, percent float64, message string) {
	r.UpdateJob(sessionID, jobID, func(job *JobStatus) {
		job.Progress = percent
		job.Message = message
	})
}

// CompleteJob flips the job to completed and appends the record to the
// session history, evicting the oldest entries beyond the limit.
func (r *Registry) CompleteJob(sessionID, jobID string, rec DownloadRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	now := r.now()
	if job, ok := s.jobs[jobID]; ok {
		job.State = StateCompleted
		job.Progress = 100
		job.Message = "Download completed"
		job.Filename = rec.Filename
		job.OriginalName = rec.OriginalName
		job.FileSize = rec.FileSize
		job.CompletedAt = &now
	}
	s.history = append(s.history, rec)
	if len(s.history) > r.historyLimit {
		s.history = s.history[len(s.history)-r.historyLimit:]
	}
	s.lastSeen = now
}

// FailJob marks the job as errored, keeping the diagnostic tail for polling.
func (r *Registry) FailJob(sessionID, jobID, message, errorOutput string) {
	r.UpdateJob(sessionID, jobID, func(job *JobStatus) {
		job.State = StateError
		job.Progress = 0
		job.Message = message
		job.ErrorOutput = errorOutput
	})
}

// ActiveDownloads counts the session's jobs currently in the downloading
// state. Callers use it to enforce the concurrency ceiling before spawning
// a process.
func (r *Registry) ActiveDownloads(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return 0
	}
	n := 0
	for _, job := range s.jobs {
		if job.State == StateDownloading {
			n++
		}
	}
	return n
}

// JobSnapshot returns a copy of the job's status. The copy's log slice is
// detached so callers may trim it freely.
func (r *Registry) JobSnapshot(sessionID, jobID string) (JobStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return JobStatus{}, false
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	snap := *job
	snap.Logs = append([]string(nil), job.Logs...)
	return snap, true
}

// History returns the session's completed downloads, newest first.
func (r *Registry) History(sessionID string) []DownloadRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]DownloadRecord, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// RecordByFilename finds the history entry for a served file so the
// attachment can carry the original display name.
func (r *Registry) RecordByFilename(sessionID, filename string) (DownloadRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return DownloadRecord{}, false
	}
	for _, rec := range s.history {
		if rec.Filename == filename {
			return rec, true
		}
	}
	return DownloadRecord{}, false
}

// PruneIdle drops sessions whose last activity predates maxIdle and returns
// how many were removed.
func (r *Registry) PruneIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// SessionCount reports how many sessions are tracked.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// TotalActiveDownloads counts downloading jobs across every session, for the
// stats endpoint.
func (r *Registry) TotalActiveDownloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions {
		for _, job := range s.jobs {
			if job.State == StateDownloading {
				n++
			}
		}
	}
	return n
}
