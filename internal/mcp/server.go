// Package mcp exposes cocofix over the Model Context Protocol so AI
// tools can resolve endpoints, classify single regions, and launch full
// correction runs through stdio JSON-RPC.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/cocofix/internal/agent"
	"github.com/nvandessel/cocofix/internal/config"
	"github.com/nvandessel/cocofix/internal/models"
	"github.com/nvandessel/cocofix/internal/vision"
	"github.com/nvandessel/cocofix/internal/workflow"
)

// Config holds MCP server settings.
type Config struct {
	// Name and Version identify the server to clients.
	Name    string
	Version string

	// ConfigPath is the cocofix YAML config backing classify/run tools.
	ConfigPath string
}

// Server wraps the MCP server with the loaded run configuration.
type Server struct {
	server *mcp.Server
	cfg    *config.Config
}

// NewServer loads the run configuration and registers the cocofix tools.
func NewServer(c *Config) (*Server, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: c.Name, Version: c.Version}, nil),
		cfg:    cfg,
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cocofix_resolve",
		Description: "Resolve a model_name into its execution endpoint (local path or remote API)",
	}, s.handleResolve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cocofix_classify",
		Description: "Classify one image region against the configured allowed classes",
	}, s.handleClassify)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cocofix_run",
		Description: "Run the full COCO correction workflow from the server's config",
	}, s.handleRun)

	return s, nil
}

// Run serves MCP over stdio until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// ResolveInput is the cocofix_resolve tool input.
type ResolveInput struct {
	ModelName string `json:"model_name" jsonschema:"the model_name config value to resolve"`
}

// ResolveOutput reports the endpoint decision. The API key is never
// echoed back to the client.
type ResolveOutput struct {
	Kind      string `json:"kind"`
	ModelPath string `json:"model_path,omitempty"`
	APIURL    string `json:"api_url,omitempty"`
	Model     string `json:"model,omitempty"`
}

func (s *Server) handleResolve(_ context.Context, _ *mcp.CallToolRequest, in ResolveInput) (*mcp.CallToolResult, ResolveOutput, error) {
	ep, err := config.ResolveEndpoint(in.ModelName)
	if err != nil {
		return nil, ResolveOutput{}, err
	}
	return nil, ResolveOutput{
		Kind:      string(ep.Kind),
		ModelPath: ep.ModelPath,
		APIURL:    ep.APIURL,
		Model:     ep.Model,
	}, nil
}

// ClassifyInput is the cocofix_classify tool input.
type ClassifyInput struct {
	ImagePath string    `json:"image_path" jsonschema:"path to the image file"`
	BBox      []float64 `json:"bbox,omitempty" jsonschema:"optional COCO bbox [x,y,w,h]; whole image when omitted"`
}

// ClassifyOutput is the classification verdict.
type ClassifyOutput struct {
	Label     string `json:"label,omitempty"`
	NoneMatch bool   `json:"none_match"`
}

func (s *Server) handleClassify(ctx context.Context, _ *mcp.CallToolRequest, in ClassifyInput) (*mcp.CallToolResult, ClassifyOutput, error) {
	region, err := vision.ExtractRegion(in.ImagePath, in.BBox)
	if err != nil {
		return nil, ClassifyOutput{}, err
	}

	classifier, err := agent.FromConfig(s.cfg)
	if err != nil {
		return nil, ClassifyOutput{}, err
	}

	dec, err := agent.WithRetry(classifier).Classify(ctx, agent.Request{
		ImageJPEG:      region.JPEG,
		AllowedClasses: s.cfg.AllowedClasses,
		MaxNewTokens:   s.cfg.MaxNewTokens,
	})
	if err != nil {
		return nil, ClassifyOutput{}, err
	}
	return nil, ClassifyOutput{Label: dec.Label, NoneMatch: dec.NoneMatch}, nil
}

// RunInput is the cocofix_run tool input.
type RunInput struct{}

// RunOutput carries the final report.
type RunOutput struct {
	Report *models.Report `json:"report"`
}

func (s *Server) handleRun(ctx context.Context, _ *mcp.CallToolRequest, _ RunInput) (*mcp.CallToolResult, RunOutput, error) {
	classifier, err := agent.FromConfig(s.cfg)
	if err != nil {
		return nil, RunOutput{}, err
	}

	// Same cache and similarity wiring as the run command.
	runner, cleanup, err := workflow.NewFromConfig(s.cfg, classifier)
	if err != nil {
		return nil, RunOutput{}, err
	}
	defer cleanup()

	report, err := runner.Run(ctx)
	if err != nil {
		return nil, RunOutput{}, err
	}
	return nil, RunOutput{Report: report}, nil
}

