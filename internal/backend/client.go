// Package backend is the HTTP client for the AI generation backend.
//
// Failures are reported as plain errors whose messages carry the same
// substrings the backend itself uses ("Network error", "rate limit",
// "not found"); classification into the typed taxonomy happens in the
// coordinator.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// maxErrorBody bounds how much of an error response is read into a message.
const maxErrorBody = 4096

// Client calls the generation backend over HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a client for baseURL with the given request timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// GenerateScenarios asks the backend for scenarios of one component.
func (c *Client) GenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error) {
	return c.scenarios(ctx, componentID, false)
}

// ForceGenerateScenarios bypasses any backend-side cache.
func (c *Client) ForceGenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error) {
	return c.scenarios(ctx, componentID, true)
}

func (c *Client) scenarios(ctx context.Context, componentID string, force bool) ([]domain.Scenario, error) {
	path := "/api/scenarios/" + url.PathEscape(componentID)
	if force {
		path += "?force=true"
	}
	var resp struct {
		Scenarios []domain.Scenario `json:"scenarios"`
	}
	if err := c.do(ctx, http.MethodPost, path, "component "+componentID, &resp); err != nil {
		return nil, err
	}
	return resp.Scenarios, nil
}

// GenerateRiskAssessment asks the backend to assess one scenario.
func (c *Client) GenerateRiskAssessment(ctx context.Context, scenarioID string) (domain.RiskAssessment, error) {
	var resp struct {
		RiskAssessment domain.RiskAssessment `json:"riskAssessment"`
	}
	path := "/api/risk-assessments/" + url.PathEscape(scenarioID)
	if err := c.do(ctx, http.MethodPost, path, "scenario "+scenarioID, &resp); err != nil {
		return domain.RiskAssessment{}, err
	}
	return resp.RiskAssessment, nil
}

// CheckHealth fetches the backend's health report.
func (c *Client) CheckHealth(ctx context.Context) (domain.HealthStatus, error) {
	var h domain.HealthStatus
	if err := c.do(ctx, http.MethodGet, "/api/health", "health", &h); err != nil {
		return domain.HealthStatus{}, err
	}
	return h, nil
}

func (c *Client) do(ctx context.Context, method, path, subject string, out interface{}) error {
	if c.BaseURL == "" {
		return domain.ErrBackendNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("Network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, subject, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapServiceError(domain.ErrBackendResponse.Code, domain.ErrBackendResponse.Message, err)
	}
	return nil
}

// statusError maps an HTTP status to an error message carrying the
// backend's classification substrings.
func statusError(status int, subject, body string) error {
	detail := ""
	if body != "" {
		detail = ": " + body
	}
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("rate limit exceeded (HTTP %d)%s", status, detail)
	case status == http.StatusNotFound:
		return fmt.Errorf("%s not found (HTTP %d)%s", subject, status, detail)
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return fmt.Errorf("Network error: backend unavailable (HTTP %d)%s", status, detail)
	default:
		return fmt.Errorf("backend returned HTTP %d%s", status, detail)
	}
}
