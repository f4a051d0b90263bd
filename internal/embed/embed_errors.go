package embed

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoInput = errors.New("embed: no input texts")
)

// APIError is the error envelope returned by OpenAI-compatible servers.
type APIError struct {
	Detail struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embeddings api: %s (%s)", e.Detail.Message, e.Detail.Type)
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%s: http request error: %w", operation, requestErr)
	}

	// got a response, but the api returned an error
	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok {
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("%s: unexpected status %s", operation, resp.Status)
	}

	return nil
}
