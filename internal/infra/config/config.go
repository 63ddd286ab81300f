package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string         `mapstructure:"port" yaml:"port"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Tools    ToolsConfig    `mapstructure:"tools" yaml:"tools"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type DownloadConfig struct {
	// Dir is the root of the download tree; each session gets a
	// user_<id> directory below it.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// RetentionMinutes is how long a finished file stays on disk.
	RetentionMinutes int `mapstructure:"retention_minutes" yaml:"retention_minutes"`

	// SweepIntervalMinutes is how often the janitor runs.
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes" yaml:"sweep_interval_minutes"`

	// MaxActivePerSession caps concurrent downloads for one session.
	MaxActivePerSession int `mapstructure:"max_active_per_session" yaml:"max_active_per_session"`

	// HistoryLimit bounds the per-session completed download list.
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`
}

type ToolsConfig struct {
	YtdlpPath          string `mapstructure:"ytdlp_path" yaml:"ytdlp_path"`
	FfmpegDir          string `mapstructure:"ffmpeg_dir" yaml:"ffmpeg_dir"`
	InfoTimeoutSeconds int    `mapstructure:"info_timeout_seconds" yaml:"info_timeout_seconds"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

func (d DownloadConfig) Retention() time.Duration {
	return time.Duration(d.RetentionMinutes) * time.Minute
}

func (d DownloadConfig) SweepInterval() time.Duration {
	return time.Duration(d.SweepIntervalMinutes) * time.Minute
}

func (t ToolsConfig) InfoTimeout() time.Duration {
	return time.Duration(t.InfoTimeoutSeconds) * time.Second
}

func Load(path string) (*Config, error) {

	if path == "" {
		path = "config.yaml"
	}

	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.retention_minutes", 15)
	v.SetDefault("download.sweep_interval_minutes", 5)
	v.SetDefault("download.max_active_per_session", 3)
	v.SetDefault("download.history_limit", 20)
	v.SetDefault("tools.ytdlp_path", "yt-dlp")
	v.SetDefault("tools.ffmpeg_dir", "")
	v.SetDefault("tools.info_timeout_seconds", 30)
	v.SetDefault("log.path", "ytgrab.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)

	// The config file is optional: every knob has a usable default and
	// can be overridden from the environment.
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("YTGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.normalize()

	return &cfg, nil
}

// normalize clamps nonsense values back to the defaults instead of failing
// startup over them.
func (c *Config) normalize() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Download.Dir == "" {
		c.Download.Dir = "./downloads"
	}
	if c.Download.RetentionMinutes <= 0 {
		c.Download.RetentionMinutes = 15
	}
	if c.Download.SweepIntervalMinutes <= 0 {
		c.Download.SweepIntervalMinutes = 5
	}
	if c.Download.MaxActivePerSession <= 0 {
		c.Download.MaxActivePerSession = 3
	}
	if c.Download.HistoryLimit <= 0 {
		c.Download.HistoryLimit = 20
	}
	if c.Tools.YtdlpPath == "" {
		c.Tools.YtdlpPath = "yt-dlp"
	}
	if c.Tools.InfoTimeoutSeconds <= 0 {
		c.Tools.InfoTimeoutSeconds = 30
	}
	if c.Log.Path == "" {
		c.Log.Path = "ytgrab.log"
	}
}
