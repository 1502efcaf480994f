package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wscall",
	Short: "Call functions across a WebSocket in both directions",
	Long: "wscall serves and calls paths over a WebSocket. Either side of a\n" +
		"connection can register paths, and either side can call them.",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, callCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
