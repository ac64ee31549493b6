package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/actionc/actionc/pkg/compiler"
	"github.com/actionc/actionc/pkg/runner"
)

var installCmd = &cobra.Command{
	Use:   "install [action-file...]",
	Short: "Compile actions and install the procedures into the database",
	Long: `Compile every action and apply the result to the database in one
transaction: the shared result type first, then each procedure. If
anything fails, nothing is installed.

The connection comes from DATABASE_URL or the config file.

Examples:
  actionc install
  actionc install actions/qualify_lead.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadProjectConfig()

		schema, err := loadSchema(cfg)
		if err != nil {
			return err
		}
		files, err := resolveActionFiles(cfg, args)
		if err != nil {
			return err
		}

		comp := compiler.New(schema)
		procs := make([]*compiler.Procedure, 0, len(files))
		for _, file := range files {
			action, err := compiler.LoadActionFile(file)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			proc, diags := comp.Compile(action)
			for _, warning := range diags.Warnings() {
				printWarning("%s: %s", action.Name, warning)
			}
			if proc == nil {
				for _, diag := range diags.Errors() {
					printError("%s: %s", action.Name, diag)
				}
				return fmt.Errorf("compilation failed, nothing installed")
			}
			procs = append(procs, proc)
		}
		printSuccess("Compiled %d action(s)", len(procs))

		printInfo("Connecting to database...")
		r := runner.New(runnerConfig(cfg))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := r.Connect(ctx); err != nil {
			return err
		}
		defer r.Close()
		if err := r.Ping(ctx); err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
		printSuccess("Connected to database")

		if err := r.Install(ctx, procs); err != nil {
			printError("Install failed, transaction rolled back")
			return err
		}
		for _, proc := range procs {
			printSuccess("Installed %s", proc.Name)
		}
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&schemaFlag, "schema", "", "entity schema file (overrides config)")
	installCmd.Flags().StringVar(&actionsFlag, "actions", "", "actions directory (overrides config)")
	rootCmd.AddCommand(installCmd)
}
