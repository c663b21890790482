// Package shopclient is the REST client for the merchant's commerce
// platform Admin API. One Client is scoped to a single shop and its
// access token; the fulfillment pipeline constructs one per run from
// the stored credential.
package shopclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// APIError carries the platform's HTTP status so callers can separate
// permission rejections (fallback path) from everything else.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform api: status %d: %s", e.Status, e.Body)
}

// IsPermission reports whether err is the platform refusing the call
// for a missing access scope. Those are handled locally with the
// manual-creation fallback, not treated as failures.
func IsPermission(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden
}

type Client struct {
	shop       string
	token      string
	apiVersion string
	httpc      *http.Client
}

func New(shop, token, apiVersion string) *Client {
	return &Client{
		shop:       shop,
		token:      token,
		apiVersion: apiVersion,
		httpc:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("https://%s/admin/api/%s%s", c.shop, c.apiVersion, path)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Access-Token", c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

type productEnvelope struct {
	Product *Product `json:"product"`
}

// GetProduct fetches the canonical listing the auction was created
// against.
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var env productEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d.json", id), nil, &env); err != nil {
		return nil, err
	}
	return env.Product, nil
}

// DuplicateProduct is the primary private-listing strategy: the
// platform copies the listing server-side under a new title.
func (c *Client) DuplicateProduct(ctx context.Context, id int64, newTitle, status string) (*Product, error) {
	payload := map[string]any{
		"new_title": newTitle,
		"status":    status,
	}
	var env productEnvelope
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/products/%d/duplicate.json", id), payload, &env)
	if err != nil {
		return nil, err
	}
	return env.Product, nil
}

// UpdateVariantPrice sets the duplicated variant to the winning bid.
func (c *Client) UpdateVariantPrice(ctx context.Context, variantID int64, price float64) error {
	payload := map[string]any{
		"variant": map[string]any{
			"id":    variantID,
			"price": FormatPrice(price),
		},
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/variants/%d.json", variantID), payload, nil)
}

// CreateProduct is the fallback strategy: build an equivalent draft
// listing from scratch with the price already in place.
func (c *Client) CreateProduct(ctx context.Context, spec *ProductSpec) (*Product, error) {
	var env productEnvelope
	err := c.do(ctx, http.MethodPost, "/products.json", map[string]any{"product": spec}, &env)
	if err != nil {
		return nil, err
	}
	return env.Product, nil
}

// ListingURL is the storefront address of a listing.
func (c *Client) ListingURL(handle string) string {
	return fmt.Sprintf("https://%s/products/%s", c.shop, handle)
}

// FormatPrice renders an amount the way the platform expects prices:
// fixed two decimal places, no float noise.
func FormatPrice(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}
