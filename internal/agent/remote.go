package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/cocofix/internal/config"
	"github.com/nvandessel/cocofix/internal/models"
)

// maxResponseBytes caps how much of an API response we read (4MB).
const maxResponseBytes = 4 << 20

// Remote classifies regions through an OpenAI-compatible chat completions
// API. It is safe for concurrent use; the underlying transport pools
// connections.
type Remote struct {
	apiURL       string
	apiKey       string
	model        string
	systemPrompt string
	language     string
	httpc        *http.Client
}

// RemoteConfig configures the remote classifier.
type RemoteConfig struct {
	// Endpoint must be a remote endpoint from config.ResolveEndpoint.
	Endpoint config.Endpoint

	// SystemPrompt is sent as the system message when non-empty.
	SystemPrompt string

	// Language the model is asked to answer in.
	Language string

	// Timeout bounds one whole request. Default 120s.
	Timeout time.Duration
}

// NewRemote constructs a classifier for a remote endpoint.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.Endpoint.Kind != config.EndpointRemote {
		return nil, fmt.Errorf("remote classifier needs a remote endpoint, got %q", cfg.Endpoint.Kind)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   10,
	}

	return &Remote{
		apiURL:       strings.TrimRight(cfg.Endpoint.APIURL, "/"),
		apiKey:       cfg.Endpoint.APIKey,
		model:        cfg.Endpoint.Model,
		systemPrompt: cfg.SystemPrompt,
		language:     cfg.Language,
		httpc:        &http.Client{Timeout: timeout, Transport: tr},
	}, nil
}

// chat completions wire format, request side.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Classify sends the region to the chat completions endpoint and parses
// the single-label answer.
func (r *Remote) Classify(ctx context.Context, req Request) (models.Decision, error) {
	callID := uuid.NewString()

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.ImageJPEG)
	content := []contentPart{
		{Type: "image_url", ImageURL: &imageURL{URL: dataURI, Detail: "auto"}},
		{Type: "text", Text: BuildPrompt(req.AllowedClasses, r.language)},
	}

	var messages []chatMessage
	if r.systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: r.systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: content})

	body, err := json.Marshal(chatRequest{
		Model:       r.model,
		Messages:    messages,
		MaxTokens:   req.MaxNewTokens,
		Temperature: 0,
		Stream:      false,
	})
	if err != nil {
		return models.Decision{}, fmt.Errorf("call %s: marshal request: %w", callID, err)
	}

	raw, err := r.post(ctx, r.endpoint("/chat/completions"), body)
	if err != nil {
		return models.Decision{}, fmt.Errorf("call %s: %w", callID, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.Decision{}, fmt.Errorf("call %s: decoding response: %w", callID, err)
	}
	if parsed.Error != nil {
		return models.Decision{}, fmt.Errorf("call %s: api error: %s", callID, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return models.Decision{}, fmt.Errorf("call %s: response has no choices", callID)
	}

	return ParseLabel(parsed.Choices[0].Message.Content, req.AllowedClasses), nil
}

// embeddings wire format.
type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed requests a dense embedding of the region from the endpoint's
// /embeddings route. Endpoints without an embeddings route return an
// error, which disables similarity reuse for the run.
func (r *Remote) Embed(ctx context.Context, imageJPEG []byte) ([]float32, error) {
	body, err := json.Marshal(embeddingsRequest{
		Model: r.model,
		Input: []string{"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageJPEG)},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	raw, err := r.post(ctx, r.endpoint("/embeddings"), body)
	if err != nil {
		return nil, err
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embeddings api error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embeddings response is empty")
	}
	return parsed.Data[0].Embedding, nil
}

// endpoint joins the API base URL with a route, tolerating base URLs that
// already include the route (the original config format passes full URLs).
func (r *Remote) endpoint(route string) string {
	if strings.HasSuffix(r.apiURL, route) {
		return r.apiURL
	}
	return r.apiURL + route
}

func (r *Remote) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, truncate(raw, 512))
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
