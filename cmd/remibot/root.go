package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "remibot",
	Short: "Remibot - chat-driven reminder service",
	Long: `Remibot is a self-hosted reminder bot. It schedules one-off and
recurring reminders over chat, escalates unconfirmed priority reminders,
and recovers its schedule from the store after restarts.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}
