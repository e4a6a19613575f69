package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Provider kinds, one per response shape.
const (
	KindAnthropic = "anthropic"
	KindOpenAI    = "openai"
)

const maxResponseBytes = 4 << 20

// systemInstruction fixes the output contract shared by every provider.
const systemInstruction = "You are a radiology order validation assistant. " +
	"Respond with a single JSON object containing validationStatus, complianceScore, feedback, " +
	"suggestedICD10Codes, suggestedCPTCodes and internalReasoning. Do not add prose outside the JSON."

// ProviderConfig describes one configured language-model backend.
type ProviderConfig struct {
	Name        string
	Kind        string
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// Provider sends a prompt to one backend and returns the model's text output.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewProvider builds the adapter matching cfg.Kind.
func NewProvider(cfg ProviderConfig, client *http.Client) (Provider, error) {
	if client == nil {
		client = http.DefaultClient
	}
	switch cfg.Kind {
	case KindAnthropic:
		return &anthropicProvider{cfg: cfg, client: client}, nil
	case KindOpenAI:
		return &openAIProvider{cfg: cfg, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q for %s", cfg.Kind, cfg.Name)
	}
}

// -- Anthropic Messages API --

type anthropicProvider struct {
	cfg    ProviderConfig
	client *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *anthropicProvider) Name() string { return p.cfg.Name }

func (p *anthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body := anthropicRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		System:      systemInstruction,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}
	raw, err := postJSON(ctx, p.client, p.cfg.Name, strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/messages", headers, body)
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: %s: decode body: %v", ErrMalformedResponse, p.cfg.Name, err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: %s: no text content", ErrMalformedResponse, p.cfg.Name)
	}
	return sb.String(), nil
}

// -- OpenAI-compatible chat completions (OpenAI, xAI Grok) --

type openAIProvider struct {
	cfg    ProviderConfig
	client *http.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *openAIProvider) Name() string { return p.cfg.Name }

func (p *openAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body := openAIRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Messages: []openAIMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	raw, err := postJSON(ctx, p.client, p.cfg.Name, strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/chat/completions", headers, body)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: %s: decode body: %v", ErrMalformedResponse, p.cfg.Name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: %s: no choices", ErrMalformedResponse, p.cfg.Name)
	}
	return resp.Choices[0].Message.Content, nil
}

func postJSON(ctx context.Context, client *http.Client, name, url string, headers map[string]string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: name, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ProviderError{Provider: name, StatusCode: resp.StatusCode, Message: "read body: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return nil, &ProviderError{Provider: name, StatusCode: resp.StatusCode, Message: msg}
	}
	return raw, nil
}

// ParseContent extracts the JSON object from model output, tolerating
// markdown code fences and surrounding prose.
func ParseContent(text string) (map[string]any, error) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in content", ErrMalformedResponse)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}
