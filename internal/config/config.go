// Package config loads and validates correction run configuration from
// YAML, resolves the model endpoint, and normalizes input/output paths
// into matched file pairs before the workflow ever sees them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/cocofix/internal/errs"
)

// Config is the correction run configuration. It is loaded once per run
// and immutable afterwards.
type Config struct {
	// ModelName selects the endpoint: a filesystem path for local
	// inference, or "api_url@api_key@model" for a remote API.
	ModelName string `yaml:"model_name"`

	// SystemPrompt is prepended to every agent conversation. Optional.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// Language the model is asked to answer in. Default "english".
	Language string `yaml:"language,omitempty"`

	// TmpDir is the scratch directory for temp images and partial writes.
	TmpDir string `yaml:"tmp_dir,omitempty"`

	// MaxNewTokens bounds the agent response length. Must be positive.
	MaxNewTokens int `yaml:"max_new_tokens,omitempty"`

	// TimeoutSeconds bounds a single agent call. Default 120.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// AllowedClasses is the ordered, non-empty class vocabulary the agent
	// chooses from.
	AllowedClasses []string `yaml:"allowed_classes"`

	// CocoPaths is a list of COCO JSON files or a single directory whose
	// .json files are enumerated in filename order.
	CocoPaths PathList `yaml:"coco_paths"`

	// ImagesPath is the directory holding the annotated images.
	ImagesPath string `yaml:"images_path"`

	// SavePaths receives corrected files: a list matched to CocoPaths by
	// index, or a directory matched by filename stem.
	SavePaths PathList `yaml:"save_paths"`

	// Cache enables the sqlite decision cache.
	Cache CacheConfig `yaml:"cache,omitempty"`

	// Similarity enables embedding-based label reuse for near-identical
	// regions. Requires an embedding-capable endpoint.
	Similarity SimilarityConfig `yaml:"similarity,omitempty"`
}

// CacheConfig configures the sqlite decision cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // default: <tmp_dir>/decisions.db
}

// SimilarityConfig configures embedding-based decision reuse.
type SimilarityConfig struct {
	Enabled bool `yaml:"enabled"`
	// Threshold is the minimum cosine similarity for reusing a label.
	// Default 0.97.
	Threshold float64 `yaml:"threshold,omitempty"`
}

// PathList accepts either a YAML sequence of paths or a single scalar
// (a directory or file path).
type PathList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PathList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*p = PathList{s}
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*p = PathList(list)
	default:
		return fmt.Errorf("expected string or sequence, got yaml kind %d", value.Kind)
	}
	return nil
}

// Default values applied before validation.
const (
	DefaultTmpDir         = "asset/tmp"
	DefaultMaxNewTokens   = 512
	DefaultTimeoutSeconds = 120
	DefaultLanguage       = "english"
	DefaultSimThreshold   = 0.97
)

// Load reads and parses the YAML config at path, applies defaults, and
// validates it. The returned config has not yet had its paths expanded;
// call ExpandPairs for the normalized file pairs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TmpDir == "" {
		c.TmpDir = DefaultTmpDir
	}
	if c.MaxNewTokens == 0 {
		c.MaxNewTokens = DefaultMaxNewTokens
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.Similarity.Threshold == 0 {
		c.Similarity.Threshold = DefaultSimThreshold
	}
}

// Validate checks the configuration-level invariants. Path-pair
// consistency is checked separately by ExpandPairs, since it touches the
// filesystem.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return errs.Configf("model_name", "required")
	}
	if _, err := ResolveEndpoint(c.ModelName); err != nil {
		return err
	}
	if c.MaxNewTokens <= 0 {
		return errs.Configf("max_new_tokens", "must be positive, got %d", c.MaxNewTokens)
	}
	if c.TimeoutSeconds <= 0 {
		return errs.Configf("timeout_seconds", "must be positive, got %d", c.TimeoutSeconds)
	}
	if len(c.AllowedClasses) == 0 {
		return errs.Configf("allowed_classes", "must not be empty")
	}
	seen := make(map[string]struct{}, len(c.AllowedClasses))
	for _, cls := range c.AllowedClasses {
		if cls == "" {
			return errs.Configf("allowed_classes", "contains an empty class name")
		}
		if _, dup := seen[cls]; dup {
			return errs.Configf("allowed_classes", "duplicate class %q", cls)
		}
		seen[cls] = struct{}{}
	}
	if len(c.CocoPaths) == 0 {
		return errs.Configf("coco_paths", "required")
	}
	if len(c.SavePaths) == 0 {
		return errs.Configf("save_paths", "required")
	}
	if c.ImagesPath == "" {
		return errs.Configf("images_path", "required")
	}
	info, err := os.Stat(c.ImagesPath)
	if err != nil {
		return errs.Configf("images_path", "%v", err)
	}
	if !info.IsDir() {
		return errs.Configf("images_path", "%s is not a directory", c.ImagesPath)
	}
	if c.Similarity.Enabled && (c.Similarity.Threshold <= 0 || c.Similarity.Threshold > 1) {
		return errs.Configf("similarity.threshold", "must be in (0, 1], got %v", c.Similarity.Threshold)
	}
	return nil
}
