package app

import (
	"context"

	"github.com/danfarias/ytgrab/internal/infra/config"
	"github.com/danfarias/ytgrab/internal/infra/logger"
	"github.com/danfarias/ytgrab/internal/janitor"
	"github.com/danfarias/ytgrab/internal/registry"
	"github.com/danfarias/ytgrab/internal/storage"
	"github.com/danfarias/ytgrab/internal/ytdlp"
)

// Downloader is the download service as the API layer sees it.
type Downloader interface {
	Start(sessionID, url, option, customName string) (string, error)
	Cancel(jobID string) bool
}

// InfoFetcher answers metadata-only lookups.
type InfoFetcher interface {
	FetchInfo(ctx context.Context, url string) (*ytdlp.VideoInfo, error)
}

// Context holds the core environment and shared resources for the server.
// It acts as the single source of truth the controllers operate against.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Registry   *registry.Registry
	Layout     *storage.Layout
	Downloader Downloader
	Fetcher    InfoFetcher
	Sweeper    *janitor.Sweeper
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
