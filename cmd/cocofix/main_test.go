package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cocofix/internal/models"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "cocofix",
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	return rootCmd
}

// execute runs the given subcommand under a test root and captures stdout.
func execute(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(sub)
	rootCmd.SetArgs(args)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	out, err := execute(t, newVersionCmd(), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("output %q does not contain version %q", out, version)
	}
}

func TestVersionCmdJSON(t *testing.T) {
	out, err := execute(t, newVersionCmd(), "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if parsed["version"] != version {
		t.Errorf("version = %q, want %q", parsed["version"], version)
	}
}

func TestNewRunCmd(t *testing.T) {
	cmd := newRunCmd()
	if !strings.HasPrefix(cmd.Use, "run") {
		t.Errorf("Use = %q, want run prefix", cmd.Use)
	}
	if cmd.Flags().Lookup("report") == nil {
		t.Error("missing --report flag")
	}
	if cmd.Flags().Lookup("quiet") == nil {
		t.Error("missing --quiet flag")
	}
}

func TestResolveCmdLocal(t *testing.T) {
	out, err := execute(t, newResolveCmd(), "resolve", "/models/qwen2-vl-7b")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !strings.Contains(out, "local model: /models/qwen2-vl-7b") {
		t.Errorf("output = %q, want local model line", out)
	}
}

func TestResolveCmdRemoteHidesKey(t *testing.T) {
	out, err := execute(t, newResolveCmd(),
		"resolve", "https://api.example.com/v1@sk-secret-key@gpt-4o-mini")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if strings.Contains(out, "sk-secret-key") {
		t.Error("output leaked the API key")
	}
	if !strings.Contains(out, "remote model: gpt-4o-mini") {
		t.Errorf("output = %q, want remote model line", out)
	}
	if !strings.Contains(out, "api url: https://api.example.com/v1") {
		t.Errorf("output = %q, want api url line", out)
	}
}

func TestResolveCmdJSONHidesKey(t *testing.T) {
	out, err := execute(t, newResolveCmd(),
		"resolve", "--json", "https://api.example.com/v1@sk-secret-key@gpt-4o-mini")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if strings.Contains(out, "sk-secret-key") {
		t.Error("JSON output leaked the API key")
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if parsed["kind"] != "remote" {
		t.Errorf("kind = %v, want remote", parsed["kind"])
	}
}

func TestResolveCmdMalformed(t *testing.T) {
	if _, err := execute(t, newResolveCmd(), "resolve", "url@key"); err == nil {
		t.Error("expected error for malformed model_name")
	}
}

// writeTestConfig lays out a minimal valid run setup and returns the
// config path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	images := filepath.Join(dir, "images")
	if err := os.MkdirAll(images, 0o755); err != nil {
		t.Fatalf("creating images dir: %v", err)
	}

	ds := models.Dataset{
		Images:      []models.ImageInfo{{ID: 1, FileName: "a.jpg", Width: 8, Height: 8}},
		Annotations: []models.Annotation{{ID: 1, ImageID: 1, CategoryID: 1, BBox: []float64{0, 0, 4, 4}}},
		Categories:  []models.Category{{ID: 1, Name: "cat"}},
	}
	data, err := json.Marshal(ds)
	if err != nil {
		t.Fatalf("marshaling dataset: %v", err)
	}
	cocoPath := filepath.Join(dir, "a.json")
	if err := os.WriteFile(cocoPath, data, 0o644); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}

	cfg := fmt.Sprintf(`model_name: "http://localhost:9999/v1@test-key@test-model"
allowed_classes:
  - cat
  - dog
coco_paths:
  - %s
save_paths:
  - %s
images_path: %s
tmp_dir: %s
`, cocoPath, filepath.Join(dir, "out", "a.json"), images, filepath.Join(dir, "tmp"))

	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return cfgPath
}

func TestValidateCmd(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, newValidateCmd(), "validate", cfgPath)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "endpoint: remote (test-model)") {
		t.Errorf("output = %q, want endpoint line", out)
	}
	if !strings.Contains(out, "files: 1") {
		t.Errorf("output = %q, want file count", out)
	}
	if strings.Contains(out, "test-key") {
		t.Error("output leaked the API key")
	}
}

func TestValidateCmdJSON(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := execute(t, newValidateCmd(), "validate", "--json", cfgPath)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	var parsed struct {
		Endpoint string `json:"endpoint"`
		Model    string `json:"model"`
		Pairs    []struct {
			CocoPath string `json:"coco_path"`
			SavePath string `json:"save_path"`
		} `json:"pairs"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if parsed.Endpoint != "remote" || parsed.Model != "test-model" {
		t.Errorf("endpoint = %s/%s, want remote/test-model", parsed.Endpoint, parsed.Model)
	}
	if len(parsed.Pairs) != 1 {
		t.Errorf("pairs = %d, want 1", len(parsed.Pairs))
	}
}

func TestValidateCmdBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("model_name: url@key\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := execute(t, newValidateCmd(), "validate", cfgPath); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestNewMCPServerCmd(t *testing.T) {
	cmd := newMCPServerCmd()
	if !strings.HasPrefix(cmd.Use, "mcp-server") {
		t.Errorf("Use = %q, want mcp-server prefix", cmd.Use)
	}
}
