package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avikhandakar-dev/vibe/backend"
)

// Client calls the auto-provisioning endpoint served by this package. The
// reference backend uses it as its Provisioner.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientHTTPClient sets the underlying HTTP client.
func WithClientHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a Client for the proxy at baseURL (no trailing slash).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{baseURL: baseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}

// Provision creates a workspace for userID and returns its credentials.
func (c *Client) Provision(ctx context.Context, userID, projectName string) (*backend.ProvisionedProject, error) {
	body, err := json.Marshal(ProvisionRequest{UserID: userID, ProjectName: projectName})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auto-provision", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("auto-provision returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("auto-provision returned %d", resp.StatusCode)
	}

	var provisioned ProvisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&provisioned); err != nil {
		return nil, fmt.Errorf("decoding auto-provision response: %w", err)
	}
	if !provisioned.Success {
		return nil, fmt.Errorf("auto-provision did not succeed")
	}
	return &backend.ProvisionedProject{
		ProjectSlug:    provisioned.ProjectSlug,
		TeamSlug:       provisioned.TeamSlug,
		DeploymentName: provisioned.DeploymentName,
		DeploymentURL:  provisioned.DeploymentURL,
		AdminKey:       provisioned.AdminKey,
	}, nil
}
