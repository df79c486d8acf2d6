package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	depositPath       = "/api/deposit"
	requestStatusPath = "/api/request-status"
)

// RelworxClient talks to the Relworx mobile-money proxy over HTTP.
// It never retries; callers decide what a failed call means.
type RelworxClient struct {
	baseURL string
	client  *http.Client
}

// NewRelworxClient creates a client for the proxy at baseURL.
func NewRelworxClient(baseURL string, timeout time.Duration) (*RelworxClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway base URL %q", baseURL)
	}
	return &RelworxClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Deposit handles POST /api/deposit.
func (c *RelworxClient) Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deposit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+depositPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", depositPath, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp DepositResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestStatus handles GET /api/request-status.
func (c *RelworxClient) RequestStatus(ctx context.Context, internalReference string) (*StatusResponse, error) {
	u, err := url.Parse(c.baseURL + requestStatusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create URL for %s: %w", requestStatusPath, err)
	}
	q := u.Query()
	q.Set("internal_reference", internalReference)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", requestStatusPath, err)
	}

	var resp StatusResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do executes req and decodes the JSON body into v. The proxy answers
// rejected deposits with a 4xx and a regular JSON body, so the body is
// decoded regardless of status and only an undecodable non-2xx is an error.
func (c *RelworxClient) do(req *http.Request, v interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request for %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response for %s: %w", req.URL.Path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("request to %s failed with status %d", req.URL.Path, resp.StatusCode)
		}
		return fmt.Errorf("failed to decode response for %s: %w", req.URL.Path, err)
	}
	return nil
}
