// SPDX-License-Identifier: Apache-2.0

// Package gemini provides a Google Gemini embedding binding for Flakewatch.
package gemini

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/jllopis/flakewatch/pkg/errors"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "gemini-embedding-001"

// Embedder implements embed.Embedder and embed.BatchEmbedder on the Gemini API.
type Embedder struct {
	client *genai.Client
	model  string
}

// Option configures the Embedder.
type Option func(*Embedder)

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) {
		if model != "" {
			e.model = model
		}
	}
}

// New creates a Gemini embedder. When apiKey is empty the GENAI_API_KEY and
// GEMINI_API_KEY environment variables are consulted; if neither is set
// construction fails, so a missing credential surfaces before any request.
func New(ctx context.Context, apiKey string, opts ...Option) (*Embedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GENAI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New(errors.CodeConfig, "API key is required", nil).
			WithContext("env", "GENAI_API_KEY")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, errors.New(errors.CodeProvider, "failed to create Gemini client", err)
	}

	e := &Embedder{client: client, model: DefaultModel}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EmbedBatch embeds an ordered batch of texts with a single API call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini returned a nil embedding at index %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

// Embed converts a single text into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
