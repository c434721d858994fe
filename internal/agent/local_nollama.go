//go:build !llamacpp

package agent

import (
	"fmt"
	"os"
)

// LocalConfig configures the local classifier. See local.go for the
// llamacpp build.
type LocalConfig struct {
	ModelPath    string
	SystemPrompt string
	Language     string
	GPULayers    int
	ContextSize  int
	TmpDir       string
}

// NewLocal fails in builds without the llamacpp tag. The model path is
// still checked first so a bad path surfaces as the configuration problem
// it is, before the build-tag problem.
func NewLocal(cfg LocalConfig) (Classifier, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("local model path: %w", err)
	}
	return nil, fmt.Errorf("local inference for %s requires a binary built with -tags llamacpp", cfg.ModelPath)
}
