package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/actionc/actionc/pkg/compiler"
)

var outputJSON bool

var checkCmd = &cobra.Command{
	Use:   "check [action-file...]",
	Short: "Check actions for errors (used by editor extensions)",
	Long: `Check action definitions against the schema without emitting SQL.

All diagnostics are collected in one pass, so a single run reports
every problem. With --json the output is structured for editor
integrations.

Examples:
  actionc check
  actionc check actions/qualify_lead.yml
  actionc check --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadProjectConfig()

		schema, err := loadSchema(cfg)
		if err != nil {
			if outputJSON {
				return printCheckFailure("", err.Error())
			}
			return err
		}
		files, err := resolveActionFiles(cfg, args)
		if err != nil {
			if outputJSON {
				return printCheckFailure("", err.Error())
			}
			return err
		}

		comp := compiler.New(schema)
		var findings []checkFinding
		hasErrors := false

		for _, file := range files {
			action, err := compiler.LoadActionFile(file)
			if err != nil {
				findings = append(findings, checkFinding{
					File: file, Severity: "error",
					Code: "parse_failed", Message: err.Error(),
				})
				hasErrors = true
				continue
			}
			_, diags := comp.Compile(action)
			for _, d := range diags {
				findings = append(findings, checkFinding{
					File:     file,
					Action:   action.Name,
					Severity: d.Severity.String(),
					Code:     d.Code,
					Path:     d.Path,
					Message:  d.Message,
				})
				if d.Severity == compiler.SeverityError {
					hasErrors = true
				}
			}
		}

		if outputJSON {
			result := checkResult{Valid: !hasErrors, Findings: findings}
			if result.Findings == nil {
				result.Findings = []checkFinding{}
			}
			output, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(output))
			if hasErrors {
				return fmt.Errorf("check failed")
			}
			return nil
		}

		for _, f := range findings {
			line := f.Message
			if f.Path != "" {
				line = fmt.Sprintf("%s: %s", f.Path, f.Message)
			}
			if f.Action != "" {
				line = fmt.Sprintf("%s: %s", f.Action, line)
			}
			if f.Severity == "warning" {
				printWarning("%s", line)
			} else {
				printError("%s", line)
			}
		}
		if hasErrors {
			return fmt.Errorf("check failed")
		}
		printSuccess("%d action(s) are valid", len(files))
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&schemaFlag, "schema", "", "entity schema file (overrides config)")
	checkCmd.Flags().BoolVar(&outputJSON, "json", false, "output diagnostics in JSON format")
	rootCmd.AddCommand(checkCmd)
}

// checkFinding is one diagnostic in the JSON output.
type checkFinding struct {
	File     string `json:"file"`
	Action   string `json:"action,omitempty"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
}

// checkResult is the JSON output format.
type checkResult struct {
	Valid    bool           `json:"valid"`
	Findings []checkFinding `json:"findings"`
}

func printCheckFailure(file, message string) error {
	result := checkResult{
		Valid: false,
		Findings: []checkFinding{
			{File: file, Severity: "error", Code: "setup_failed", Message: message},
		},
	}
	output, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(output))
	return fmt.Errorf("check failed")
}
