package agent

import (
	"time"

	"github.com/nvandessel/cocofix/internal/config"
)

// FromConfig builds the classifier for the config's resolved endpoint:
// a Remote client for api_url@api_key@model values, otherwise a Local
// client for an on-disk model path.
func FromConfig(cfg *config.Config) (Classifier, error) {
	ep, err := config.ResolveEndpoint(cfg.ModelName)
	if err != nil {
		return nil, err
	}

	if ep.Kind == config.EndpointRemote {
		return NewRemote(RemoteConfig{
			Endpoint:     ep,
			SystemPrompt: cfg.SystemPrompt,
			Language:     cfg.Language,
			Timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
	}

	local, err := NewLocal(LocalConfig{
		ModelPath:    ep.ModelPath,
		SystemPrompt: cfg.SystemPrompt,
		Language:     cfg.Language,
		TmpDir:       cfg.TmpDir,
	})
	if err != nil {
		return nil, err
	}
	return local, nil
}
