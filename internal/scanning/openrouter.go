package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "qwen/qwen2.5-vl-72b-instruct:free"
)

// OpenRouter implements the Scanner interface against an OpenAI-compatible
// chat completions endpoint, OpenRouter by default.
type OpenRouter struct {
	baseURL  string
	apiKey   string
	model    string
	siteURL  string
	siteName string
	sampling Sampling
	client   *http.Client
}

// OpenRouterConfig configures an OpenRouter scanner.
type OpenRouterConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// SiteURL and SiteName are sent as HTTP-Referer and X-Title for
	// OpenRouter's app attribution. Both are optional.
	SiteURL  string
	SiteName string
	Sampling Sampling
}

// NewOpenRouter creates a new OpenRouter Scanner instance
func NewOpenRouter(cfg OpenRouterConfig) (*OpenRouter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenRouterModel
	}

	return &OpenRouter{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		siteURL:  cfg.SiteURL,
		siteName: cfg.SiteName,
		sampling: cfg.Sampling.normalized(),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Scan sends the invoice image and prompt as one user message
func (o *OpenRouter) Scan(ctx context.Context, imageData []byte, contentType string, prompt string) (string, error) {
	finalImageData, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return "", err
	}

	reqBody := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{
						URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(finalImageData),
					}},
				},
			},
		},
		Temperature: o.sampling.Temperature,
		MaxTokens:   o.sampling.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.siteURL != "" {
		req.Header.Set("HTTP-Referer", o.siteURL)
	}
	if o.siteName != "" {
		req.Header.Set("X-Title", o.siteName)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling openrouter API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openrouter API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openrouter response")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// Close is a no-op for the HTTP client
func (o *OpenRouter) Close() error {
	return nil
}
