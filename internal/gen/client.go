// Package gen calls the Gemini multimodal API to produce architecture renders:
// plain generation from a source image and instruction, masked edits, and
// text-only analysis (auto-describe, material suggestions).
//
// All generation is fan-out/fan-in: N independent requests, wait for all to
// settle, keep the slots that yielded a well-formed inline image. A failed or
// text-only slot is dropped without retry and never cancels its siblings.
package gen

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// generateFunc is the single-request call into the model API. Injected so
// tests can exercise the orchestration without the network.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Client wraps a genai.Client for render generation.
type Client struct {
	genai    *genai.Client
	generate generateFunc
}

// NewClient creates a render generation client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{genai: gc}
	c.generate = func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return gc.Models.GenerateContent(ctx, model, contents, config)
	}
	return c, nil
}

// Raw exposes the underlying genai client for startup key validation.
func (c *Client) Raw() *genai.Client {
	return c.genai
}
