package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/danfarias/ytgrab/internal/app"
	"github.com/danfarias/ytgrab/internal/domain"
	"github.com/danfarias/ytgrab/internal/registry"
	"github.com/danfarias/ytgrab/internal/storage"
	"github.com/labstack/echo/v5"
)

const sessionCookieName = "ytgrab_session"

// MediaController serves the whole download API. Session identity is an
// opaque cookie token resolved against the registry on every request.
type MediaController struct {
	App *app.Context
}

// resolveSession maps the request's cookie onto a live session, creating
// one when the cookie is missing or stale. Cookie issuance happens here,
// at the HTTP boundary; the registry only deals in tokens.
func (ctrl *MediaController) resolveSession(c *echo.Context) string {
	var token string
	if cookie, err := c.Cookie(sessionCookieName); err == nil {
		token = cookie.Value
	}

	sessionID, isNew := ctrl.App.Registry.ResolveOrCreateSession(token)
	if isNew {
		c.SetCookie(&http.Cookie{
			Name:     sessionCookieName,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int((24 * time.Hour).Seconds()),
			HttpOnly: true,
		})
	}
	return sessionID
}

// Index serves the HTML shell and establishes the session.
func (ctrl *MediaController) Index(c *echo.Context) error {
	sessionID := ctrl.resolveSession(c)
	ctrl.App.Logger.Debug("session %.8s connected", sessionID)
	return c.HTML(http.StatusOK, indexPage)
}

// GetInfo looks up media metadata without downloading anything.
func (ctrl *MediaController) GetInfo(c *echo.Context) error {
	var req infoRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "URL is required"})
	}

	info, err := ctrl.App.Fetcher.FetchInfo(c.Request().Context(), req.URL)
	if err != nil {
		ctrl.App.Logger.Warn("get_info failed for %s: %v", req.URL, err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, infoResponse{
		Success:   true,
		Title:     info.Title,
		Author:    info.Uploader,
		Duration:  info.Duration,
		Views:     info.ViewCount,
		Thumbnail: info.Thumbnail,
	})
}

// StartDownload accepts a job and returns immediately; the work happens on
// a background task and is observed by polling.
func (ctrl *MediaController) StartDownload(c *echo.Context) error {
	sessionID := ctrl.resolveSession(c)

	var req downloadRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "URL is required"})
	}

	jobID, err := ctrl.App.Downloader.Start(sessionID, req.URL, req.Option, req.CustomFilename)
	if err != nil {
		if errors.Is(err, domain.ErrTooManyActive) {
			return c.JSON(http.StatusTooManyRequests, downloadRejected{
				Success: false,
				Error:   "Too many downloads in progress. Try again in a moment.",
			})
		}
		ctrl.App.Logger.Error("start download: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, downloadResponse{
		Success:   true,
		SessionID: sessionID,
		JobID:     jobID,
		Message:   "Download started in the background",
	})
}

// Status returns the job's current state. An unknown id yields a neutral
// "unknown" status, never an error.
func (ctrl *MediaController) Status(c *echo.Context) error {
	sessionID := ctrl.resolveSession(c)
	jobID := c.Param("id")

	snap, ok := ctrl.App.Registry.JobSnapshot(sessionID, jobID)
	if !ok {
		return c.JSON(http.StatusOK, unknownStatusResponse{
			Status:   "unknown",
			Message:  "Download not found",
			Progress: 0,
		})
	}

	if len(snap.Logs) > 20 {
		snap.Logs = snap.Logs[len(snap.Logs)-20:]
	}

	resp := statusResponse{JobStatus: snap}
	if snap.State == registry.StateCompleted && snap.Filename != "" {
		if path, err := ctrl.App.Layout.Resolve(sessionID, snap.Filename); err == nil {
			if fi, err := os.Stat(path); err == nil {
				minutes := ctrl.App.Sweeper.ExpiresIn(fi)
				resp.ExpiresInMinutes = &minutes
			}
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// ServeFile streams a finished download back to its owner. The path is
// confined to the caller's directory and expiry is re-checked at request
// time, deleting the file on the spot when it has lapsed.
func (ctrl *MediaController) ServeFile(c *echo.Context) error {
	sessionID := ctrl.resolveSession(c)
	filename := c.Param("filename")

	path, err := ctrl.App.Layout.Resolve(sessionID, filename)
	if err != nil {
		if errors.Is(err, storage.ErrOutsideUserDir) {
			return c.String(http.StatusForbidden, "Access denied")
		}
		return c.String(http.StatusInternalServerError, "Could not resolve file")
	}

	fi, err := os.Stat(path)
	if err != nil {
		return c.String(http.StatusNotFound, "File not found or expired")
	}

	if ctrl.App.Sweeper.Expired(fi) {
		if err := os.Remove(path); err != nil {
			ctrl.App.Logger.Warn("remove expired %s: %v", filename, err)
		}
		return c.String(http.StatusGone, "File expired")
	}

	downloadName := filename
	if rec, ok := ctrl.App.Registry.RecordByFilename(sessionID, filename); ok {
		downloadName = rec.OriginalName + filepath.Ext(filename)
	}

	c.Response().Header().Set(echo.HeaderContentType, mimeTypeFor(filename))
	return c.Attachment(path, downloadName)
}

// MyDownloads lists the caller's unexpired files, newest first.
func (ctrl *MediaController) MyDownloads(c *echo.Context) error {
	sessionID := ctrl.resolveSession(c)

	dir, err := ctrl.App.Layout.UserDir(sessionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	files := make([]fileEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		if ctrl.App.Sweeper.Expired(fi) {
			continue
		}

		item := fileEntry{
			Filename:         entry.Name(),
			Size:             fi.Size(),
			SizeMB:           roundMB(fi.Size()),
			Modified:         fi.ModTime().Format(time.RFC3339),
			ExpiresInMinutes: ctrl.App.Sweeper.ExpiresIn(fi),
		}
		if rec, ok := ctrl.App.Registry.RecordByFilename(sessionID, entry.Name()); ok {
			item.OriginalName = rec.OriginalName
		}
		files = append(files, item)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified > files[j].Modified
	})

	return c.JSON(http.StatusOK, myDownloadsResponse{Files: files})
}

// Cleanup runs the manual sweep scoped to the caller's directory.
func (ctrl *MediaController) Cleanup(c *echo.Context) error {
	sessionID := ctrl.resolveSession(c)

	deleted := ctrl.App.Sweeper.CleanupSession(sessionID)
	return c.JSON(http.StatusOK, cleanupResponse{
		Success:      true,
		DeletedCount: deleted,
		Message:      "Expired files removed",
	})
}

// Stats aggregates counters across every session's directory.
func (ctrl *MediaController) Stats(c *echo.Context) error {
	totalFiles := 0
	var totalSize int64
	activeSessions := 0

	root := ctrl.App.Layout.Root
	entries, err := os.ReadDir(root)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	for _, entry := range entries {
		if !entry.IsDir() || !isUserDir(entry.Name()) {
			continue
		}
		dirPath := filepath.Join(root, entry.Name())
		if fi, err := os.Stat(dirPath); err == nil && !ctrl.App.Sweeper.Expired(fi) {
			activeSessions++
		}
		sub, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}
		for _, f := range sub {
			if f.IsDir() {
				continue
			}
			fi, err := f.Info()
			if err != nil || ctrl.App.Sweeper.Expired(fi) {
				continue
			}
			totalFiles++
			totalSize += fi.Size()
		}
	}

	free, err := freeSpace(root)
	if err != nil {
		ctrl.App.Logger.Warn("stats: free space: %v", err)
	}

	return c.JSON(http.StatusOK, statsResponse{
		TotalFiles:       totalFiles,
		TotalSizeMB:      roundMB(totalSize),
		ActiveDownloads:  ctrl.App.Registry.TotalActiveDownloads(),
		ActiveSessions:   activeSessions,
		FreeSpaceMB:      roundMB(int64(free)),
		RetentionMinutes: ctrl.App.Config.Download.RetentionMinutes,
	})
}

func isUserDir(name string) bool {
	return len(name) > 5 && name[:5] == "user_"
}

func mimeTypeFor(filename string) string {
	switch filepath.Ext(filename) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

func roundMB(size int64) float64 {
	mb := float64(size) / (1024 * 1024)
	return float64(int(mb*100+0.5)) / 100
}
