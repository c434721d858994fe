package config

import (
	"strings"

	"github.com/nvandessel/cocofix/internal/errs"
)

// EndpointKind distinguishes local inference from a remote API.
type EndpointKind string

const (
	EndpointLocal  EndpointKind = "local"
	EndpointRemote EndpointKind = "remote"
)

// Endpoint is the resolved execution target for model inference.
type Endpoint struct {
	Kind EndpointKind

	// ModelPath is set for local endpoints: the on-disk model location.
	ModelPath string

	// APIURL, APIKey, and Model are set for remote endpoints.
	APIURL string
	APIKey string
	Model  string
}

// ResolveEndpoint parses a model_name config value into an endpoint
// decision. The function is pure: it never touches the filesystem or
// network, so resolving the same string twice yields the same result.
// Existence of a local model path is checked later, at classifier
// construction, before any inference call.
//
// A value without '@' is a local model path. A value with exactly two '@'
// delimiters is split into (api_url, api_key, model) in that order. Any
// other delimiter count is malformed.
func ResolveEndpoint(modelName string) (Endpoint, error) {
	if modelName == "" {
		return Endpoint{}, errs.Configf("model_name", "required")
	}
	switch strings.Count(modelName, "@") {
	case 0:
		return Endpoint{Kind: EndpointLocal, ModelPath: modelName}, nil
	case 2:
		parts := strings.SplitN(modelName, "@", 3)
		ep := Endpoint{
			Kind:   EndpointRemote,
			APIURL: parts[0],
			APIKey: parts[1],
			Model:  parts[2],
		}
		if ep.APIURL == "" || ep.APIKey == "" || ep.Model == "" {
			return Endpoint{}, errs.Configf("model_name", "remote endpoint has an empty field (want api_url@api_key@model)")
		}
		return ep, nil
	default:
		return Endpoint{}, errs.Configf("model_name", "malformed model_name %q: want a local path or api_url@api_key@model", modelName)
	}
}
