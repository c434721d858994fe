package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cocofix",
		Short: "Correct species labels in COCO annotation files with a vision-language model",
		Long: `cocofix validates and corrects species-classification labels in
COCO-format annotation files.

For every annotated instance it crops the image region, asks a
vision-language model to pick one of the allowed classes, and rewrites
the annotation's category when the model disagrees. Corrected files are
written atomically; the input files are never modified in place.`,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for machine consumption)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newValidateCmd(),
		newResolveCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				cmd.Printf("cocofix version %s\n", version)
			}
		},
	}
}
