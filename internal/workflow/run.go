// Package workflow orchestrates a correction run: it walks the resolved
// COCO file pairs, classifies every annotated region through the agent
// boundary, rewrites mismatched category ids, and writes corrected files
// atomically.
package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/cocofix/internal/agent"
	"github.com/nvandessel/cocofix/internal/cache"
	"github.com/nvandessel/cocofix/internal/coco"
	"github.com/nvandessel/cocofix/internal/config"
	"github.com/nvandessel/cocofix/internal/models"
	"github.com/nvandessel/cocofix/internal/similar"
	"github.com/nvandessel/cocofix/internal/vision"
)

// Runner executes correction runs. Construct with New; the zero value is
// not usable.
type Runner struct {
	cfg        *config.Config
	classifier agent.Classifier
	cache      *cache.Store
	index      *similar.Index
	embedder   agent.Embedder
	cacheKey   string
	logf       func(format string, args ...any)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithCache attaches a decision cache. Nil is ignored.
func WithCache(c *cache.Store) Option {
	return func(r *Runner) { r.cache = c }
}

// WithSimilarity attaches an embedding index and the embedder that feeds
// it. Both must be non-nil for similarity reuse to engage.
func WithSimilarity(idx *similar.Index, emb agent.Embedder) Option {
	return func(r *Runner) {
		r.index = idx
		r.embedder = emb
	}
}

// WithLogf directs progress output. Default: silent.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(r *Runner) { r.logf = logf }
}

// New builds a Runner for the given validated config. The classifier is
// wrapped with the single-retry policy; pass a pre-wrapped classifier to
// tests that need exact call counts.
func New(cfg *config.Config, classifier agent.Classifier, opts ...Option) (*Runner, error) {
	ep, err := config.ResolveEndpoint(cfg.ModelName)
	if err != nil {
		return nil, err
	}
	key := ep.ModelPath
	if ep.Kind == config.EndpointRemote {
		// The cache key must not embed the API key.
		key = ep.Model + "@" + ep.APIURL
	}

	r := &Runner{
		cfg:        cfg,
		classifier: agent.WithRetry(classifier),
		cacheKey:   key,
		logf:       func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewFromConfig builds a Runner with the cache and similarity index wired
// the way the config asks, so every entry point (CLI, MCP) behaves the
// same. The returned cleanup closes the cache; call it when the run ends.
func NewFromConfig(cfg *config.Config, classifier agent.Classifier, opts ...Option) (*Runner, func() error, error) {
	r, err := New(cfg, classifier, opts...)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() error { return nil }
	if cfg.Cache.Enabled && r.cache == nil {
		path := cfg.Cache.Path
		if path == "" {
			path = filepath.Join(cfg.TmpDir, "decisions.db")
		}
		store, err := cache.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening decision cache: %w", err)
		}
		r.cache = store
		cleanup = store.Close
	}

	if cfg.Similarity.Enabled && r.index == nil {
		if emb, ok := classifier.(agent.Embedder); ok {
			r.index = similar.New(similar.Config{})
			r.embedder = emb
		} else {
			r.logf("similarity reuse requires an embedding-capable endpoint; continuing without")
		}
	}
	return r, cleanup, nil
}

// Run executes the whole correction workflow and returns the report.
// Only configuration-level problems return an error; file- and
// annotation-scoped failures are recorded in the report and processing
// continues.
func (r *Runner) Run(ctx context.Context) (*models.Report, error) {
	pairs, err := r.cfg.ExpandPairs()
	if err != nil {
		return nil, err
	}

	report := &models.Report{StartedAt: time.Now().UTC()}
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.logf("processing %s", pair.CocoPath)
		report.Files = append(report.Files, r.processFile(ctx, pair))
	}
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (r *Runner) processFile(ctx context.Context, pair config.FilePair) models.FileReport {
	fr := models.FileReport{InputPath: pair.CocoPath, SavePath: pair.SavePath}

	ds, err := coco.Load(pair.CocoPath)
	if err != nil {
		fr.Failed = true
		fr.Error = err.Error()
		return fr
	}

	for i := range ds.Annotations {
		if ctx.Err() != nil {
			fr.Failed = true
			fr.Error = ctx.Err().Error()
			return fr
		}
		outcome, added := r.processAnnotation(ctx, ds, &ds.Annotations[i])
		fr.Count(outcome)
		if added {
			fr.CategoriesAdded++
		}
	}

	if err := coco.Save(ds, pair.SavePath, r.cfg.TmpDir); err != nil {
		fr.Failed = true
		fr.Error = err.Error()
	}
	return fr
}

// processAnnotation classifies one annotation's region and applies the
// decision. The second return value reports whether a new category was
// appended.
func (r *Runner) processAnnotation(ctx context.Context, ds *models.Dataset, ann *models.Annotation) (models.Outcome, bool) {
	img := ds.ImageByID(ann.ImageID)
	cat := ds.CategoryByID(ann.CategoryID)
	if img == nil || cat == nil {
		// coco.Load validated cross-references; this only happens when a
		// category appended for an earlier annotation was since renamed,
		// which we never do.
		return models.OutcomeErrored, false
	}

	imagePath := filepath.Join(r.cfg.ImagesPath, filepath.Base(img.FileName))
	region, err := vision.ExtractRegion(imagePath, ann.BBox)
	if err != nil {
		r.logf("annotation %d: %v", ann.ID, err)
		return models.OutcomeErrored, false
	}

	dec, err := r.decide(ctx, region, cat.Name)
	if err != nil {
		r.logf("annotation %d: %v", ann.ID, err)
		return models.OutcomeErrored, false
	}

	if dec.NoneMatch {
		return models.OutcomeUnresolved, false
	}
	if strings.EqualFold(strings.TrimSpace(dec.Label), strings.TrimSpace(cat.Name)) {
		return models.OutcomeUnchanged, false
	}

	id, added := coco.EnsureCategory(ds, dec.Label)
	ann.CategoryID = id
	return models.OutcomeCorrected, added
}

// decide resolves a classification for the region: cache hit, similarity
// reuse, then a fresh agent call (with its single retry). Reused decisions
// must still carry a label from this run's allowed classes; a cache row
// written under a different allowed_classes list is treated as a miss.
func (r *Runner) decide(ctx context.Context, region *vision.Region, currentLabel string) (models.Decision, error) {
	if r.cache != nil {
		if dec, ok, err := r.cache.Get(ctx, region.Fingerprint, r.cacheKey); err == nil && ok {
			if dec.NoneMatch || allowed(dec.Label, r.cfg.AllowedClasses) {
				return dec, nil
			}
			r.logf("cached label %q not in allowed classes, reclassifying", dec.Label)
		} else if err != nil {
			r.logf("cache lookup failed, continuing without: %v", err)
		}
	}

	var queryVec []float32
	if r.index != nil && r.embedder != nil {
		vec, err := r.embedder.Embed(ctx, region.JPEG)
		if err != nil {
			// Endpoints without an embeddings route disable reuse for the
			// rest of the run rather than erroring every annotation.
			r.logf("embedding unavailable, disabling similarity reuse: %v", err)
			r.index = nil
			r.embedder = nil
		} else {
			queryVec = vec
			if dec, ok := r.index.Lookup(vec, r.cfg.Similarity.Threshold); ok {
				if dec.NoneMatch || allowed(dec.Label, r.cfg.AllowedClasses) {
					return dec, nil
				}
				r.logf("similar label %q not in allowed classes, reclassifying", dec.Label)
			}
		}
	}

	dec, err := r.classifier.Classify(ctx, agent.Request{
		ImageJPEG:      region.JPEG,
		AllowedClasses: r.cfg.AllowedClasses,
		CurrentLabel:   currentLabel,
		MaxNewTokens:   r.cfg.MaxNewTokens,
	})
	if err != nil {
		return models.Decision{}, err
	}
	if !dec.NoneMatch && !allowed(dec.Label, r.cfg.AllowedClasses) {
		return models.Decision{}, fmt.Errorf("classifier returned label %q outside the allowed classes", dec.Label)
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, region.Fingerprint, r.cacheKey, dec); err != nil {
			r.logf("cache insert failed: %v", err)
		}
	}
	if r.index != nil && queryVec != nil && !dec.NoneMatch {
		r.index.Add(region.Fingerprint, queryVec, dec)
	}
	return dec, nil
}

func allowed(label string, classes []string) bool {
	for _, c := range classes {
		if strings.EqualFold(label, c) {
			return true
		}
	}
	return false
}
