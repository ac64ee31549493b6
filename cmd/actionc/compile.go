package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/actionc/actionc/pkg/compiler"
)

var (
	outDir    string
	toStdout  bool
	withManif bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [action-file...]",
	Short: "Compile action definitions to PL/pgSQL procedures",
	Long: `Compile action definitions against the entity schema.

Each action produces one .sql file (the procedure) and, with
--manifest, one .impact.json file (the entities and operations the
action may touch).

Examples:
  actionc compile                          # every action in the actions dir
  actionc compile actions/qualify_lead.yml
  actionc compile --stdout actions/qualify_lead.yml`,
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

		dir := outDir
		if dir == "" {
			dir = cfg.Output.Dir
		}
		if !toStdout {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("cannot create output directory: %w", err)
			}
		}

		comp := compiler.New(schema)
		cache := compiler.NewCache()
		failed := 0

		for _, file := range files {
			action, err := compiler.LoadActionFile(file)
			if err != nil {
				printError("%s: %v", file, err)
				failed++
				continue
			}

			proc, diags, err := comp.CompileCached(cache, action)
			if err != nil {
				printError("%s: %v", file, err)
				failed++
				continue
			}
			for _, warning := range diags.Warnings() {
				printWarning("%s: %s", action.Name, warning)
			}
			if proc == nil {
				for _, diag := range diags.Errors() {
					printError("%s: %s", action.Name, diag)
				}
				failed++
				continue
			}

			if toStdout {
				fmt.Println(proc.SQL)
				continue
			}

			sqlPath := filepath.Join(dir, action.Name+".sql")
			if err := os.WriteFile(sqlPath, []byte(proc.SQL), 0644); err != nil {
				return fmt.Errorf("cannot write %s: %w", sqlPath, err)
			}
			if withManif || cfg.Output.Manifest {
				manifest, err := proc.Impact.ToJSON()
				if err != nil {
					return fmt.Errorf("cannot encode impact manifest: %w", err)
				}
				manifPath := filepath.Join(dir, action.Name+".impact.json")
				if err := os.WriteFile(manifPath, []byte(manifest), 0644); err != nil {
					return fmt.Errorf("cannot write %s: %w", manifPath, err)
				}
			}
			printSuccess("%s → %s", action.Name, sqlPath)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d action(s) failed to compile", failed, len(files))
		}
		if !toStdout {
			printSuccess("Compiled %d action(s)", len(files))
		}
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVar(&schemaFlag, "schema", "", "entity schema file (overrides config)")
	compileCmd.Flags().StringVar(&actionsFlag, "actions", "", "actions directory (overrides config)")
	compileCmd.Flags().StringVar(&outDir, "out", "", "output directory (overrides config)")
	compileCmd.Flags().BoolVar(&toStdout, "stdout", false, "print SQL to stdout instead of writing files")
	compileCmd.Flags().BoolVar(&withManif, "manifest", false, "write impact manifests next to procedures")
	rootCmd.AddCommand(compileCmd)
}
