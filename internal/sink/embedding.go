// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package sink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mattermost/mattermost-issuesync/internal/retry"
)

const (
	DefaultEmbeddingBaseURL = "https://api.openai.com/v1"
	DefaultEmbeddingModel   = "text-embedding-3-small"
)

type EmbedderConfig struct {
	// BaseURL of an OpenAI compatible API. Azure OpenAI deployments work
	// when it points at the deployment path.
	BaseURL string
	APIKey  string
	Model   string
	// Dimensions the returned vectors must have.
	Dimensions int
	Timeout    time.Duration
	Retry      retry.Policy
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embedder turns issue text into vectors.
type Embedder struct {
	rest       *restClient
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

func NewEmbedder(config EmbedderConfig, client *http.Client) (*Embedder, error) {
	if config.APIKey == "" {
		return nil, errors.New("embedding API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultEmbeddingBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultEmbeddingModel
	}
	if config.Dimensions <= 0 {
		config.Dimensions = DefaultDimensions
	}

	return &Embedder{
		rest:       newRESTClient("embedding provider", client, config.Timeout, config.Retry),
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		model:      config.Model,
		dimensions: config.Dimensions,
	}, nil
}

func (e *Embedder) Dimensions() int { return e.dimensions }

// Embed returns the vector of text. A vector of an unexpected dimension is
// reported as ErrDimensionMismatch.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := embeddingRequest{Model: e.model, Input: []string{text}}
	if strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = e.dimensions
	}

	var resp embeddingResponse
	header := http.Header{"Authorization": []string{"Bearer " + e.apiKey}}
	if _, err := e.rest.do(ctx, http.MethodPost, e.baseURL+"/embeddings", header, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding provider returned no embedding")
	}

	raw := resp.Data[0].Embedding
	if len(raw) != e.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(raw), e.dimensions)
	}
	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v)
	}
	return vector, nil
}
