package embed

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"github.com/embedsync/embedsync/internal/version"
)

const v1Embeddings = "/v1/embeddings"

// Config for the embeddings client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// Client calls an OpenAI-compatible embeddings API. The underlying HTTP
// client pools connections and retries rate limits and transient server
// errors with backoff before surfacing an error to the caller.
type Client struct {
	http  *req.Client
	model string
	dims  int
}

func New(cfg *Config) *Client {
	client := req.C().
		SetBaseURL(cfg.BaseURL).
		SetCommonBearerAuthToken(cfg.APIKey).
		SetUserAgent("embedsync/"+version.Version).
		SetTimeout(2*time.Minute).
		SetCommonRetryCount(3).
		SetCommonRetryBackoffInterval(time.Second, 10*time.Second).
		AddCommonRetryCondition(func(resp *req.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		}).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)

	return &Client{
		http:  client,
		model: cfg.Model,
		dims:  cfg.Dimensions,
	}
}

// Embed converts texts into fixed-length vectors, preserving input order.
// The API accepts batched input, so callers should group documents per call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoInput
	}

	var result embeddingsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&embeddingsRequest{
			Model:      c.model,
			Input:      texts,
			Dimensions: c.dims,
		}).
		SetSuccessResult(&result).
		SetErrorResult(&APIError{}).
		Post(v1Embeddings)

	if err := handleAPIError(resp, err, "embed"); err != nil {
		return nil, err
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d embeddings for %d inputs", len(result.Data), len(texts))
	}

	// the api is documented to return data in input order, but Index is
	// authoritative
	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].Index < result.Data[j].Index
	})

	vectors := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		if c.dims > 0 && len(d.Embedding) != c.dims {
			return nil, fmt.Errorf("embed: vector %d has %d dimensions, want %d", i, len(d.Embedding), c.dims)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
