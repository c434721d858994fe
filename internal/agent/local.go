//go:build llamacpp

package agent

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	llama "github.com/tcpipuk/llama-go"

	"github.com/nvandessel/cocofix/internal/models"
)

// Local classifies regions with an embedded GGUF model via llama-go.
// Vision input requires a multimodal projector file next to the model
// weights (<model>.mmproj). Thread-safe: all context access is serialized
// via mutex, as llama contexts are not.
type Local struct {
	modelPath    string
	systemPrompt string
	language     string
	gpuLayers    int
	contextSize  int
	tmpDir       string

	mu sync.Mutex

	// Lazy-loaded on first use.
	model   *llama.Model
	genCtx  *llama.Context
	loadErr error
	once    sync.Once
}

// LocalConfig configures the local classifier.
type LocalConfig struct {
	// ModelPath is the GGUF model file.
	ModelPath string

	// SystemPrompt and Language mirror the remote classifier.
	SystemPrompt string
	Language     string

	// GPULayers is the number of layers offloaded to GPU (0 = CPU only).
	GPULayers int

	// ContextSize is the context window in tokens. Default 4096.
	ContextSize int

	// TmpDir receives temp JPEG crops handed to the model.
	TmpDir string
}

// NewLocal constructs a local classifier. The model file must exist; the
// weights are not loaded until the first classification.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("local model path: %w", err)
	}
	ctxSize := cfg.ContextSize
	if ctxSize <= 0 {
		ctxSize = 4096
	}
	return &Local{
		modelPath:    cfg.ModelPath,
		systemPrompt: cfg.SystemPrompt,
		language:     cfg.Language,
		gpuLayers:    cfg.GPULayers,
		contextSize:  ctxSize,
		tmpDir:       cfg.TmpDir,
	}, nil
}

func (l *Local) load() error {
	l.once.Do(func() {
		model, err := llama.LoadModel(l.modelPath,
			llama.WithGPULayers(l.gpuLayers),
			llama.WithMMap(true),
			llama.WithSilentLoading(),
		)
		if err != nil {
			l.loadErr = fmt.Errorf("loading model %s: %w", l.modelPath, err)
			return
		}
		l.model = model

		ctx, err := model.NewContext(
			llama.WithContext(l.contextSize),
			llama.WithThreads(runtime.NumCPU()),
		)
		if err != nil {
			model.Close()
			l.model = nil
			l.loadErr = fmt.Errorf("creating generation context: %w", err)
			return
		}
		l.genCtx = ctx
	})
	return l.loadErr
}

// Classify runs synchronous local inference on the region.
func (l *Local) Classify(ctx context.Context, req Request) (models.Decision, error) {
	if err := l.load(); err != nil {
		return models.Decision{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return models.Decision{}, err
	}

	prompt := BuildPrompt(req.AllowedClasses, l.language)
	if l.systemPrompt != "" {
		prompt = l.systemPrompt + "\n\n" + prompt
	}

	out, err := l.genCtx.GenerateWithImages(prompt,
		[][]byte{req.ImageJPEG},
		llama.WithMaxTokens(req.MaxNewTokens),
		llama.WithTemperature(0),
	)
	if err != nil {
		return models.Decision{}, fmt.Errorf("local inference: %w", err)
	}
	return ParseLabel(out, req.AllowedClasses), nil
}

// Close releases the model and context.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.genCtx != nil {
		l.genCtx.Close()
		l.genCtx = nil
	}
	if l.model != nil {
		l.model.Close()
		l.model = nil
	}
	return nil
}
