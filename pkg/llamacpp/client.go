// Package llamacpp is a vision client for llama.cpp's OpenAI-compatible
// chat completions endpoint.
package llamacpp

import (
	"context"
	"net/http"
	"time"

	"github.com/menta2k/smodf-client/internal/errors"
	"github.com/menta2k/smodf-client/internal/transport"
	"github.com/menta2k/smodf-client/pkg/client"
	"github.com/menta2k/smodf-client/pkg/types"
)

const (
	// DefaultURL is used when no server URL is configured
	DefaultURL = "http://localhost:8080"

	// CompletionsPath is the chat completions endpoint
	CompletionsPath = "/v1/chat/completions"

	// DefaultTimeout bounds one completion when the caller sets no deadline
	DefaultTimeout = 5 * time.Minute

	componentName = "llamacpp"
)

// Sampling used for free-form answers and for structured object lists
const (
	queryTemperature    = 0.7
	analysisTemperature = 0.2
	maxTokens           = 2048
	topP                = 0.9
)

// Client implements client.VisionClient
type Client struct {
	t       *transport.Client
	baseURL string
}

// Message is an OpenAI-compatible chat message; Content is a string or []ContentPart
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one text or image part of a message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inline data URL
type ImageURL struct {
	URL string `json:"url"`
}

// ChatCompletionRequest is the request body of CompletionsPath
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

// ChatCompletionResponse is the reply of CompletionsPath
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice is one completion alternative
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// NewClient creates a client for the server at serverURL (DefaultURL when empty)
func NewClient(serverURL string, opts ...transport.ClientOption) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}
	t, err := transport.New(transport.Config{
		BaseURL:   serverURL,
		Timeout:   DefaultTimeout,
		UserAgent: "smodf-client/" + componentName,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{t: t, baseURL: t.BaseURL()}, nil
}

// SimpleQuery asks prompt about the image and returns the raw answer
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.complete(ctx, model, prompt, imgB64, queryTemperature)
}

// AnalyzeImage asks for an object list and parses the JSON reply
func (c *Client) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	text, err := c.complete(ctx, model, prompt, imgB64, analysisTemperature)
	if err != nil {
		return nil, err
	}
	return client.ParseAnalysisResult(text), nil
}

func (c *Client) complete(ctx context.Context, model, prompt, imgB64 string, temperature float64) (string, error) {
	content := []ContentPart{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		content = append(content, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + imgB64},
		})
	}

	resp, err := c.t.Request(ctx, http.MethodPost, CompletionsPath, ChatCompletionRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: content}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        topP,
	})
	if err != nil {
		return "", err
	}

	var out ChatCompletionResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.Newf("no choices in response").Component(componentName).Category(errors.CategoryPipeline).Build()
	}
	if text := messageText(out.Choices[0].Message.Content); text != "" {
		return text, nil
	}
	return "", errors.Newf("empty response from llama.cpp server").Component(componentName).Category(errors.CategoryPipeline).Build()
}

// messageText returns the string content, or the first text part of a parts list
func messageText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	return ""
}
