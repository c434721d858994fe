package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cocofix/internal/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a run configuration without executing it",
		Long: `Load and validate a run configuration, resolve the model endpoint,
and print the normalized input/output file pairs the run would process.

Exits non-zero on any configuration error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			ep, err := config.ResolveEndpoint(cfg.ModelName)
			if err != nil {
				return err
			}
			pairs, err := cfg.ExpandPairs()
			if err != nil {
				return err
			}

			if jsonOut {
				out := struct {
					Endpoint       string            `json:"endpoint"`
					Model          string            `json:"model"`
					AllowedClasses []string          `json:"allowed_classes"`
					Pairs          []config.FilePair `json:"pairs"`
				}{
					Endpoint:       string(ep.Kind),
					Model:          endpointModel(ep),
					AllowedClasses: cfg.AllowedClasses,
					Pairs:          pairs,
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			cmd.Printf("endpoint: %s (%s)\n", ep.Kind, endpointModel(ep))
			cmd.Printf("allowed classes: %d\n", len(cfg.AllowedClasses))
			cmd.Printf("files: %d\n", len(pairs))
			for _, p := range pairs {
				cmd.Printf("  %s\n", p)
			}
			return nil
		},
	}
}

func endpointModel(ep config.Endpoint) string {
	if ep.Kind == config.EndpointLocal {
		return ep.ModelPath
	}
	return ep.Model
}

// writeFile writes data to path, creating parent directories.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
