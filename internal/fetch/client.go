package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

const maxErrorBody = 512

// Client calls the live-fetch service, which fetches and summarizes pages.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// FetchRelevantContent posts the request to /fetch. The deadline comes from
// ctx.
func (c *Client) FetchRelevantContent(ctx context.Context, req models.FetchRequest) (*models.FetchResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode fetch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fetch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("fetch service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result models.FetchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode fetch result: %w", err)
	}

	log.Debug().
		Int("tenant_id", req.TenantID).
		Int("pages", len(result.Summaries)).
		Int("cache_hits", result.CacheHits).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("🌐 live fetch completed")
	return &result, nil
}
