package main

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "actionc",
	Short: "Compile declarative action steps into PL/pgSQL procedures",
	Long: `actionc turns declarative business-logic actions into transactional
PL/pgSQL procedures.

Each action compiles to one procedure that returns a standardized
mutation result, plus an impact manifest listing the entities and
operations the action may touch.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
