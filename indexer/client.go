package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jetstream-aero/embedq/configs"
)

const maxErrorBodyBytes = 2 * 1024

// Result is the normalized outcome of one indexing call. Every transport error,
// timeout or non-2xx response is flattened into it at this boundary, so the
// processor never deals with raw error shapes.
type Result struct {
	Success bool
	Message string
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	timeout    time.Duration
}

func NewClient(appConfigs *configs.AppConfigs) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   appConfigs.IndexerTimeout,
		},
		endpoint: appConfigs.IndexerURL,
		apiKey:   appConfigs.IndexerAPIKey,
		timeout:  appConfigs.IndexerTimeout,
	}
}

type indexRequest struct {
	Type string `json:"type"`
	Id   string `json:"id"`
}

// IndexObject performs a single indexing attempt for one entity. No retries at
// this layer: the queue's backoff cycle owns retrying.
func (c *Client) IndexObject(objectType string, objectId string, ctx context.Context) Result {
	reqBody, err := json.Marshal(indexRequest{Type: objectType, Id: objectId})
	if err != nil {
		return Result{Message: fmt.Sprintf("failed to encode indexing request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return Result{Message: fmt.Sprintf("failed to build indexing request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return Result{Message: fmt.Sprintf("indexing request timed out after %s", c.timeout)}
		}
		return Result{Message: fmt.Sprintf("indexing request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Success: true}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	message := strings.TrimSpace(string(body))
	if message == "" {
		return Result{Message: fmt.Sprintf("indexing endpoint returned status %d", resp.StatusCode)}
	}
	return Result{Message: fmt.Sprintf("indexing endpoint returned status %d: %s", resp.StatusCode, message)}
}

func isClientTimeout(err error) bool {
	var urlErr interface{ Timeout() bool }
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
