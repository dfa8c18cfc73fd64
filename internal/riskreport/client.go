// Package riskreport looks up third-party risk scores for installed extensions.
// Scores come from a CRXcavator-compatible report API keyed by extension id,
// version and platform.
package riskreport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/lotekdan/go-browser-inventory/internal/browsers"
)

// Score bands used by the report API
const (
	lowCeiling    = 377
	mediumCeiling = 478
)

// Detail breaks the total score down by category
type Detail struct {
	ContentSecurityPolicy int `json:"contentSecurityPolicy"`
	Permissions           int `json:"permissions"`
	Webstore              int `json:"webstore"`
}

// Report is the risk assessment for one extension version
type Report struct {
	Score  int    `json:"score"`
	Level  string `json:"level"`
	Detail Detail `json:"detail"`
}

// Options tunes retries and throttling
type Options struct {
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64
}

// DefaultOptions retries three times and allows two lookups per second
func DefaultOptions() Options {
	return Options{
		RetryMax:          3,
		RetryWaitMin:      500 * time.Millisecond,
		RetryWaitMax:      5 * time.Second,
		Timeout:           15 * time.Second,
		RequestsPerSecond: 2,
	}
}

// Client wraps resty with retries and a rate limiter
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a client for the report API at baseURL
func NewClient(baseURL string, opts Options) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = nil

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "go-browser-inventory/1.0")
	if opts.Timeout > 0 {
		restyClient.SetTimeout(opts.Timeout)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		resty:   restyClient,
		limiter: rate.NewLimiter(limit, 1),
	}
}

type reportResponse struct {
	Data *struct {
		Risk *struct {
			Total       float64 `json:"total"`
			CSP         total   `json:"csp"`
			Permissions total   `json:"permissions"`
			Webstore    total   `json:"webstore"`
		} `json:"risk"`
	} `json:"data"`
}

type total struct {
	Total float64 `json:"total"`
}

// Report fetches the risk report for an extension version. A nil report with a
// nil error means the service has no data for it.
func (c *Client) Report(ctx context.Context, extensionID, version string, platform browsers.Family) (*Report, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body reportResponse
	resp, err := c.resty.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"id":      extensionID,
			"version": version,
		}).
		SetQueryParam("platform", string(platform)).
		SetResult(&body).
		Get("/{id}/{version}")
	if err != nil {
		return nil, fmt.Errorf("risk report for %s %s: %w", extensionID, version, err)
	}

	if resp.StatusCode() != http.StatusOK || strings.TrimSpace(resp.String()) == "null" {
		return nil, nil
	}
	if body.Data == nil || body.Data.Risk == nil {
		return nil, fmt.Errorf("risk report for %s %s: response has no data.risk", extensionID, version)
	}

	risk := body.Data.Risk
	score := int(risk.Total)
	return &Report{
		Score: score,
		Level: LevelFor(score),
		Detail: Detail{
			ContentSecurityPolicy: int(risk.CSP.Total),
			Permissions:           int(risk.Permissions.Total),
			Webstore:              int(risk.Webstore.Total),
		},
	}, nil
}

// LevelFor maps a total score onto Low, Medium or High
func LevelFor(score int) string {
	switch {
	case score <= lowCeiling:
		return "Low"
	case score <= mediumCeiling:
		return "Medium"
	default:
		return "High"
	}
}
