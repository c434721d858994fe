package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/nvandessel/cocofix/internal/errs"
	"github.com/nvandessel/cocofix/internal/models"
)

// retryClassifier retries a failed classification once with identical
// inputs before surfacing an AgentError. Context cancellation is not
// retried.
type retryClassifier struct {
	inner Classifier
}

// WithRetry wraps a classifier with the single-retry policy.
func WithRetry(inner Classifier) Classifier {
	return &retryClassifier{inner: inner}
}

func (r *retryClassifier) Classify(ctx context.Context, req Request) (models.Decision, error) {
	dec, err := r.inner.Classify(ctx, req)
	if err == nil {
		return dec, nil
	}
	if ctx.Err() != nil {
		return models.Decision{}, ctx.Err()
	}

	dec, err = r.inner.Classify(ctx, req)
	if err == nil {
		return dec, nil
	}
	return models.Decision{}, &errs.AgentError{CallID: uuid.NewString(), Err: err}
}
