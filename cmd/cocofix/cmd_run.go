package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/cocofix/internal/agent"
	"github.com/nvandessel/cocofix/internal/config"
	"github.com/nvandessel/cocofix/internal/models"
	"github.com/nvandessel/cocofix/internal/workflow"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run the COCO correction workflow",
		Long: `Load a run configuration, classify every annotated region, and write
corrected COCO files to the configured save paths.

Examples:
  cocofix run configs/coco_cls_checker.yaml
  cocofix run configs/coco_cls_checker.yaml --report report.yaml
  cocofix run configs/coco_cls_checker.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			reportPath, _ := cmd.Flags().GetString("report")
			quiet, _ := cmd.Flags().GetBool("quiet")

			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			classifier, err := agent.FromConfig(cfg)
			if err != nil {
				return err
			}

			var opts []workflow.Option
			if !quiet && !jsonOut {
				opts = append(opts, workflow.WithLogf(func(format string, a ...any) {
					cmd.Printf(format+"\n", a...)
				}))
			}

			runner, cleanup, err := workflow.NewFromConfig(cfg, classifier, opts...)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			if reportPath != "" {
				if err := writeReport(report, reportPath); err != nil {
					return err
				}
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().String("report", "", "Write the run report to this file (.json or .yaml)")
	cmd.Flags().Bool("quiet", false, "Suppress per-file progress output")
	return cmd
}

func printReport(cmd *cobra.Command, report *models.Report) {
	for _, f := range report.Files {
		if f.Failed {
			cmd.Printf("FAILED  %s: %s\n", f.InputPath, f.Error)
			continue
		}
		cmd.Printf("ok      %s -> %s (corrected %d, unchanged %d, unresolved %d, errored %d)\n",
			f.InputPath, f.SavePath, f.Corrected, f.Unchanged, f.Unresolved, f.Errored)
	}
	t := report.Totals()
	cmd.Printf("total: %d annotations (corrected %d, unchanged %d, unresolved %d, errored %d)",
		t.Annotations(), t.Corrected, t.Unchanged, t.Unresolved, t.Errored)
	if t.CategoriesAdded > 0 {
		cmd.Printf(", %d categories added", t.CategoriesAdded)
	}
	cmd.Println()
	if report.HasWarnings() {
		cmd.PrintErrln("run completed with warnings; see report for unresolved/errored annotations")
	}
}

func writeReport(report *models.Report, path string) error {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return writeFile(path, data)
	default:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return writeFile(path, append(data, '\n'))
	}
}
