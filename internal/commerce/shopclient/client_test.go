package shopclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rerouteTransport sends every request to the test server regardless of
// the shop host the client builds into the URL.
type rerouteTransport struct {
	target *url.URL
}

func (t rerouteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	c := New("demo.myshop.example", "tok-123", "2024-10")
	c.httpc = &http.Client{Transport: rerouteTransport{target: target}}
	return c
}

func TestGetProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/admin/api/2024-10/products/7.json", r.URL.Path)
		assert.Equal(t, "tok-123", r.Header.Get("X-Access-Token"))
		w.Write([]byte(`{"product":{"id":7,"title":"Vintage Lamp","handle":"vintage-lamp",
			"variants":[{"id":41,"price":"10.00"}]}}`))
	})

	p, err := c.GetProduct(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "Vintage Lamp", p.Title)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, int64(41), p.Variants[0].ID)
}

func TestDuplicateProductPayload(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2024-10/products/7/duplicate.json", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"product":{"id":8,"handle":"vintage-lamp-copy"}}`))
	})

	p, err := c.DuplicateProduct(context.Background(), 7, "Vintage Lamp - Auction Winner", StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, int64(8), p.ID)
	assert.Equal(t, "Vintage Lamp - Auction Winner", got["new_title"])
	assert.Equal(t, "draft", got["status"])
}

func TestUpdateVariantPriceFormatsPrice(t *testing.T) {
	var got struct {
		Variant struct {
			ID    int64  `json:"id"`
			Price string `json:"price"`
		} `json:"variant"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/admin/api/2024-10/variants/41.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.UpdateVariantPrice(context.Background(), 41, 20.5))
	assert.Equal(t, int64(41), got.Variant.ID)
	assert.Equal(t, "20.50", got.Variant.Price)
}

func TestCreateProduct(t *testing.T) {
	var got map[string]*ProductSpec
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2024-10/products.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"product":{"id":9,"handle":"winner-copy"}}`))
	})

	spec := &ProductSpec{
		Title:    "Vintage Lamp - Auction Winner",
		Status:   StatusDraft,
		Tags:     "lamps, auction-winner",
		Variants: []Variant{{Price: "20.00"}},
	}
	p, err := c.CreateProduct(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.ID)
	require.NotNil(t, got["product"])
	assert.Equal(t, spec.Title, got["product"].Title)
	assert.Equal(t, "20.00", got["product"].Variants[0].Price)
}

func TestForbiddenIsPermissionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":"write_products scope required"}`, http.StatusForbidden)
	})

	_, err := c.DuplicateProduct(context.Background(), 7, "t", StatusDraft)
	require.Error(t, err)
	assert.True(t, IsPermission(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, apiErr.Body, "write_products")
}

func TestServerErrorIsNotPermission(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.GetProduct(context.Background(), 7)
	require.Error(t, err)
	assert.False(t, IsPermission(err))
}

func TestListingURL(t *testing.T) {
	c := New("demo.myshop.example", "tok", "2024-10")
	assert.Equal(t, "https://demo.myshop.example/products/vintage-lamp",
		c.ListingURL("vintage-lamp"))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "20.00", FormatPrice(20))
	assert.Equal(t, "19.99", FormatPrice(19.99))
	assert.Equal(t, "0.10", FormatPrice(0.1))
}
