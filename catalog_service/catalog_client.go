package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/akmmp241/catalog-gateway/shared"
	"github.com/gofiber/fiber/v2"
)

type CatalogClientConfig struct {
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	MaxResults   int
}

// CatalogClient talks to the third-party product catalog. Every search
// exchanges the client credentials for a fresh token first.
type CatalogClient struct {
	cfg CatalogClientConfig
}

func NewCatalogClient(cfg CatalogClientConfig) *CatalogClient {
	return &CatalogClient{cfg: cfg}
}

// callTimeout shortens the configured timeout to the context deadline. The
// fiber Agent cannot be cancelled once a request is in flight.
func (c *CatalogClient) callTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return c.cfg.Timeout
	}
	remaining := time.Until(deadline)
	if c.cfg.Timeout <= 0 || remaining < c.cfg.Timeout {
		return max(remaining, time.Millisecond)
	}
	return c.cfg.Timeout
}

func (c *CatalogClient) fetchToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("token exchange: %w: %w", ErrCredential, err)
	}

	res, err := shared.CallService(fiber.MethodPost, c.cfg.TokenURL,
		shared.WithForm(map[string]string{
			"client_id":     c.cfg.ClientID,
			"client_secret": c.cfg.ClientSecret,
			"grant_type":    "client_credentials",
		}),
		shared.WithTimeout(c.callTimeout(ctx)),
	)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w: %w", ErrCredential, err)
	}
	if !res.OK() {
		slog.Error("Error occurred while requesting catalog token", "status", res.StatusCode, "errs", res.Errs)
		return "", fmt.Errorf("token exchange returned status %d: %w", res.StatusCode, ErrCredential)
	}

	var token tokenResponse
	if err := json.Unmarshal(res.Body, &token); err != nil {
		return "", fmt.Errorf("token exchange: %w: %w", ErrCredential, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned no access_token: %w", ErrCredential)
	}

	return token.AccessToken, nil
}

// Search returns the raw catalog records matching term, in catalog order.
func (c *CatalogClient) Search(ctx context.Context, term string) ([]RawCatalogRecord, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		catalogRequestsTotal.WithLabelValues("credential_error").Inc()
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("catalog search: %w: %w", ErrUpstreamUnavailable, err)
	}

	searchURL := fmt.Sprintf("%s/productos?busqueda=%s", strings.TrimRight(c.cfg.APIURL, "/"), url.QueryEscape(term))
	res, err := shared.CallService(fiber.MethodGet, searchURL,
		shared.WithBearer(token),
		shared.WithTimeout(c.callTimeout(ctx)),
	)
	if err != nil {
		catalogRequestsTotal.WithLabelValues("upstream_error").Inc()
		return nil, fmt.Errorf("catalog search: %w: %w", ErrUpstreamUnavailable, err)
	}
	if !res.OK() {
		catalogRequestsTotal.WithLabelValues("upstream_error").Inc()
		slog.Error("Could not get data from catalog endpoint", "status", res.StatusCode, "errs", res.Errs)
		return nil, fmt.Errorf("catalog search returned status %d: %w", res.StatusCode, ErrUpstreamUnavailable)
	}

	records, err := decodeCatalogRecords(res.Body)
	if err != nil {
		catalogRequestsTotal.WithLabelValues("upstream_error").Inc()
		return nil, fmt.Errorf("decode catalog response: %w: %w", ErrUpstreamUnavailable, err)
	}

	if c.cfg.MaxResults > 0 && len(records) > c.cfg.MaxResults {
		records = records[:c.cfg.MaxResults]
	}

	catalogRequestsTotal.WithLabelValues("ok").Inc()
	return records, nil
}
