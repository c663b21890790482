package auctionhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopauctions/internal/services/auction"
	"shopauctions/internal/services/fulfillment"
	"shopauctions/internal/services/shop"
)

type fakeService struct {
	auction.IAuctionService

	createErr error
	getErr    error
	bidErr    error
	closeErr  error
	reopenErr error

	current float64
	got     auction.CreateParams
}

func (f *fakeService) Create(_ context.Context, p auction.CreateParams) (string, error) {
	f.got = p
	if f.createErr != nil {
		return "", f.createErr
	}
	return "a1", nil
}

func (f *fakeService) Get(context.Context, string) (*auction.Auction, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &auction.Auction{
		ID:         "a1",
		ShopDomain: "demo.myshop.example",
		Status:     auction.StatusEnded,
		EndsAt:     time.Now().UTC().Add(-time.Minute),
	}, nil
}

func (f *fakeService) PlaceBid(context.Context, string, string, string, float64) (float64, error) {
	if f.bidErr != nil {
		return 0, f.bidErr
	}
	return f.current, nil
}

func (f *fakeService) Close(context.Context, string) error { return f.closeErr }

func (f *fakeService) Reopen(context.Context, string) error { return f.reopenErr }

type fakeFulfiller struct {
	err  error
	id   string
	shop string
}

func (f *fakeFulfiller) Fulfill(_ context.Context, id, shop string) error {
	f.id, f.shop = id, shop
	return f.err
}

func newTestRouter(svc *fakeService, pipe *fakeFulfiller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(svc, pipe).Register(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func validCreateBody() gin.H {
	return gin.H{
		"shop_domain":   "demo.myshop.example",
		"product_id":    88231,
		"product_title": "Vintage Lamp",
		"starts_at":     "2026-09-01T10:00:00Z",
		"ends_at":       "2026-09-02T10:00:00Z",
		"starting_bid":  10,
	}
}

func TestCreateAuction(t *testing.T) {
	svc := &fakeService{}
	rec := doJSON(t, newTestRouter(svc, &fakeFulfiller{}), http.MethodPost, "/auctions", validCreateBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"a1"}`, rec.Body.String())
	assert.Equal(t, int64(88231), svc.got.ProductID)
}

func TestCreateAuctionMissingFields(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}, &fakeFulfiller{}),
		http.MethodPost, "/auctions", gin.H{"shop_domain": "demo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", auction.ErrNotFound, http.StatusNotFound},
		{"invalid window", auction.ErrInvalidWindow, http.StatusBadRequest},
		{"duplicate product", auction.ErrDuplicateProduct, http.StatusConflict},
		{"other", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{createErr: tc.err}
			rec := doJSON(t, newTestRouter(svc, &fakeFulfiller{}),
				http.MethodPost, "/auctions", validCreateBody())
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestPlaceBid(t *testing.T) {
	svc := &fakeService{current: 15}
	rec := doJSON(t, newTestRouter(svc, &fakeFulfiller{}),
		http.MethodPost, "/auctions/a1/bid", gin.H{"bidder": "user123", "amount": 15})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"current_bid":15}`, rec.Body.String())
}

func TestPlaceBidConflicts(t *testing.T) {
	for _, sentinel := range []error{auction.ErrBidTooLow, auction.ErrInvalidState} {
		svc := &fakeService{bidErr: sentinel}
		rec := doJSON(t, newTestRouter(svc, &fakeFulfiller{}),
			http.MethodPost, "/auctions/a1/bid", gin.H{"bidder": "user123", "amount": 1})
		assert.Equal(t, http.StatusConflict, rec.Code)
	}
}

func TestPlaceBidRejectsNonPositiveAmount(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}, &fakeFulfiller{}),
		http.MethodPost, "/auctions/a1/bid", gin.H{"bidder": "user123", "amount": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFulfillPassesShopDomain(t *testing.T) {
	pipe := &fakeFulfiller{}
	rec := doJSON(t, newTestRouter(&fakeService{}, pipe),
		http.MethodPost, "/auctions/a1/fulfill", nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "a1", pipe.id)
	assert.Equal(t, "demo.myshop.example", pipe.shop)
}

func TestFulfillErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fulfillment.ErrLockHeld, http.StatusConflict},
		{auction.ErrAlreadyProcessed, http.StatusConflict},
		{shop.ErrCredentialMissing, http.StatusFailedDependency},
	}
	for _, tc := range cases {
		pipe := &fakeFulfiller{err: tc.err}
		rec := doJSON(t, newTestRouter(&fakeService{}, pipe),
			http.MethodPost, "/auctions/a1/fulfill", nil)
		assert.Equal(t, tc.want, rec.Code)
	}
}

func TestCloseAuction(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}, &fakeFulfiller{}),
		http.MethodPost, "/auctions/a1/close", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, newTestRouter(&fakeService{closeErr: auction.ErrInvalidState}, &fakeFulfiller{}),
		http.MethodPost, "/auctions/a1/close", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReopenFailedAuction(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}, &fakeFulfiller{}),
		http.MethodPost, "/auctions/a1/reopen", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// reopening anything not in failed is a state conflict
	rec = doJSON(t, newTestRouter(&fakeService{reopenErr: auction.ErrInvalidState}, &fakeFulfiller{}),
		http.MethodPost, "/auctions/a1/reopen", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListRequiresShopParam(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}, &fakeFulfiller{}),
		http.MethodGet, "/auctions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
