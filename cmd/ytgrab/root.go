package main

import (
	"github.com/spf13/cobra"
)

var configPath string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ytgrab",
		Short: "Multi-user web front-end for yt-dlp with per-session isolation",
		Long: "ytgrab runs a small web service that drives yt-dlp and ffmpeg to fetch\n" +
			"audio/video from remote URLs. Each browser session gets its own download\n" +
			"directory, its own job history, and automatic file expiry.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	root.AddCommand(newServeCommand())
	root.AddCommand(newSweepCommand())

	return root
}
