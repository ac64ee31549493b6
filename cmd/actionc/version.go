package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the CLI version, overridden at build time with -ldflags.
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show actionc version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("actionc v%s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
