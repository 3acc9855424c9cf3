package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodius/graphsync/cmd/collabd/commands"
	"github.com/nodius/graphsync/logger"
)

var rootCmd = &cobra.Command{
	Use:   "collabd",
	Short: "collabd — real-time collaborative graph-editing backbone",
	Long: `collabd hosts the WebSocket session manager, cluster coordinator,
and SQLite-backed store for the collaborative graph editor.

Examples:
  collabd serve --config collabd.toml
  collabd version`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return logger.Initialize(false)
	},
}

func init() {
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
