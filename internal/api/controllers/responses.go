package controllers

import "github.com/danfarias/ytgrab/internal/registry"

type infoRequest struct {
	URL string `json:"url"`
}

type downloadRequest struct {
	URL            string `json:"url"`
	Option         string `json:"option"`
	CustomFilename string `json:"custom_filename"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type infoResponse struct {
	Success   bool    `json:"success"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	Duration  float64 `json:"duration"`
	Views     int64   `json:"views"`
	Thumbnail string  `json:"thumbnail"`
}

type downloadResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	JobID     string `json:"jobId"`
	Message   string `json:"message"`
}

type downloadRejected struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// statusResponse is the polled job projection: the registry snapshot plus
// the minutes left before the finished file expires.
type statusResponse struct {
	registry.JobStatus
	ExpiresInMinutes *int `json:"expires_in_minutes,omitempty"`
}

type unknownStatusResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
}

type fileEntry struct {
	Filename         string  `json:"filename"`
	OriginalName     string  `json:"original_name,omitempty"`
	Size             int64   `json:"size"`
	SizeMB           float64 `json:"size_mb"`
	Modified         string  `json:"modified"`
	ExpiresInMinutes int     `json:"expires_in_minutes"`
}

type myDownloadsResponse struct {
	Files []fileEntry `json:"files"`
}

type cleanupResponse struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deleted_count"`
	Message      string `json:"message"`
}

type statsResponse struct {
	TotalFiles       int     `json:"total_files"`
	TotalSizeMB      float64 `json:"total_size_mb"`
	ActiveDownloads  int     `json:"active_downloads"`
	ActiveSessions   int     `json:"active_sessions"`
	FreeSpaceMB      float64 `json:"free_space_mb"`
	RetentionMinutes int     `json:"retention_minutes"`
}
