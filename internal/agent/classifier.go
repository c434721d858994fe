// Package agent defines the classification boundary: a Classifier answers
// "which allowed class is shown in this image region" through a local
// model or a remote vision API.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nvandessel/cocofix/internal/models"
)

// NoneToken is the literal the model is instructed to answer when no
// allowed class fits the region.
const NoneToken = "none"

// Request carries one classification query.
type Request struct {
	// ImageJPEG is the encoded image region.
	ImageJPEG []byte

	// AllowedClasses is the full class vocabulary for this run.
	AllowedClasses []string

	// CurrentLabel is the annotation's present category name. Informational;
	// implementations must not bias toward it.
	CurrentLabel string

	// MaxNewTokens bounds the response length.
	MaxNewTokens int
}

// Classifier answers classification queries about image regions.
// Implementations must return a Decision whose Label is drawn from
// AllowedClasses, or with NoneMatch set.
type Classifier interface {
	Classify(ctx context.Context, req Request) (models.Decision, error)
}

// Embedder is implemented by classifiers that can also produce dense
// vector embeddings for image regions; it powers similarity reuse.
type Embedder interface {
	Embed(ctx context.Context, imageJPEG []byte) ([]float32, error)
}

// BuildPrompt renders the classification instruction for a request. The
// model must answer with exactly one allowed class or the none token; any
// prose beyond that is stripped by ParseLabel.
func BuildPrompt(allowedClasses []string, language string) string {
	var b strings.Builder
	b.WriteString("Identify the species shown in the image region.\n")
	b.WriteString("Choose exactly one of the following classes:\n")
	for _, cls := range allowedClasses {
		fmt.Fprintf(&b, "- %s\n", cls)
	}
	fmt.Fprintf(&b, "If none of the classes match, answer %q.\n", NoneToken)
	b.WriteString("Answer with the class name only, no explanation.")
	if language != "" {
		fmt.Fprintf(&b, "\n\n(Please respond only in language %s)", strings.ToUpper(language))
	}
	return b.String()
}

// ParseLabel normalizes a raw model response into a Decision. Code fences,
// surrounding quotes, and trailing punctuation are stripped; matching
// against the allowed classes is case-insensitive. A response that is
// neither an allowed class nor the none token is treated as none-match:
// the source system falls back to the unmodified annotation on
// unparseable output rather than failing the run.
func ParseLabel(raw string, allowedClasses []string) models.Decision {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.Trim(s, "`")
		// drop a leading fence language tag such as "json\n"
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], " \t") && len(s[:i]) < 16 {
			s = s[i+1:]
		}
	}
	s = strings.Trim(s, " \t\r\n\"'.")

	lower := strings.ToLower(s)
	if lower == NoneToken || lower == "none match" || lower == "none_match" {
		return models.Decision{NoneMatch: true, Source: models.SourceAgent}
	}
	for _, cls := range allowedClasses {
		if strings.EqualFold(s, cls) {
			return models.Decision{Label: cls, Source: models.SourceAgent}
		}
	}
	return models.Decision{NoneMatch: true, Source: models.SourceAgent}
}
