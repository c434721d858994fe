package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cocofix/internal/config"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <model_name>",
		Short: "Show how a model_name value resolves (local path or remote API)",
		Long: `Parse a model_name the way a run would and print the endpoint
decision. The API key is redacted.

Examples:
  cocofix resolve /models/qwen2-vl-7b
  cocofix resolve https://api.example.com/v1@sk-...@gpt-4o-mini`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			ep, err := config.ResolveEndpoint(args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				out := struct {
					Kind      string `json:"kind"`
					ModelPath string `json:"model_path,omitempty"`
					APIURL    string `json:"api_url,omitempty"`
					Model     string `json:"model,omitempty"`
				}{string(ep.Kind), ep.ModelPath, ep.APIURL, ep.Model}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			if ep.Kind == config.EndpointLocal {
				cmd.Printf("local model: %s\n", ep.ModelPath)
			} else {
				cmd.Printf("remote model: %s\n", ep.Model)
				cmd.Printf("api url: %s\n", ep.APIURL)
				cmd.Println("api key: (hidden)")
			}
			return nil
		},
	}
}
