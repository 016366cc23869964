// Package suggest asks an external suggestion service for complementary
// products given the current cart. The service is optional; any failure
// degrades to a small static list so the register flow never blocks.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var fallbackSuggestions = []string{"Milk", "Bread", "Eggs"}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.SugaredLogger
}

func NewClient(baseURL string, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

type suggestionRequest struct {
	Items []string `json:"items"`
}

type suggestionResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Suggest returns up to three complementary product names for the given
// cart item names. An empty cart yields no suggestions. Transport or
// decode failures fall back to the static list.
func (c *Client) Suggest(ctx context.Context, itemNames []string) []string {
	if len(itemNames) == 0 {
		return []string{}
	}
	if c.baseURL == "" {
		return fallbackSuggestions
	}

	payload, err := json.Marshal(suggestionRequest{Items: itemNames})
	if err != nil {
		return fallbackSuggestions
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/suggestions", bytes.NewReader(payload))
	if err != nil {
		return fallbackSuggestions
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warnw("suggestion service unreachable", "error", err)
		return fallbackSuggestions
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warnw("suggestion service returned non-200", "status", resp.StatusCode)
		return fallbackSuggestions
	}

	var decoded suggestionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logger.Warnw("suggestion response decode failed", "error", fmt.Errorf("decode: %w", err))
		return fallbackSuggestions
	}
	if len(decoded.Suggestions) == 0 {
		return fallbackSuggestions
	}
	if len(decoded.Suggestions) > 3 {
		decoded.Suggestions = decoded.Suggestions[:3]
	}
	return decoded.Suggestions
}
