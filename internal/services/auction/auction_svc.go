package auction

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"shopauctions/internal/metrics"
	"shopauctions/internal/services/notification"
)

// CreateParams carries everything needed to list a product for
// auction. The record starts in pending; the status sweep activates it
// once starts_at passes.
type CreateParams struct {
	ShopDomain   string
	ProductID    int64
	ProductTitle string
	StartsAt     time.Time
	EndsAt       time.Time
	StartingBid  float64
	BuyNowPrice  *float64
	ReservePrice float64

	PopcornEnabled     bool
	PopcornTriggerSecs int
	PopcornExtendSecs  int
}

// Notifier is the producer side of the notification queue.
type Notifier interface {
	Enqueue(ctx context.Context, job notification.Job) error
}

// BidStats receives best-effort per-bidder aggregates.
type BidStats interface {
	RecordBid(ctx context.Context, domain, bidder string, amount float64) error
}

type IAuctionService interface {
	Create(ctx context.Context, p CreateParams) (string, error)
	Get(ctx context.Context, id string) (*Auction, error)
	List(ctx context.Context, shop string, status Status, limit, offset int) ([]*Auction, error)
	PlaceBid(ctx context.Context, id, bidder, contact string, amount float64) (float64, error)
	Close(ctx context.Context, id string) error
	Reopen(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Bids(ctx context.Context, id string) ([]Bid, error)
}

type auctionService struct {
	store    *Store
	notifier Notifier
	stats    BidStats
}

func NewAuctionService(store *Store, notifier Notifier, stats BidStats) IAuctionService {
	return &auctionService{store: store, notifier: notifier, stats: stats}
}

func (svc *auctionService) Create(ctx context.Context, p CreateParams) (string, error) {
	return svc.store.Create(ctx, &Auction{
		ShopDomain:         p.ShopDomain,
		ProductID:          p.ProductID,
		ProductTitle:       p.ProductTitle,
		StartsAt:           p.StartsAt,
		EndsAt:             p.EndsAt,
		StartingBid:        p.StartingBid,
		BuyNowPrice:        p.BuyNowPrice,
		ReservePrice:       p.ReservePrice,
		PopcornEnabled:     p.PopcornEnabled,
		PopcornTriggerSecs: p.PopcornTriggerSecs,
		PopcornExtendSecs:  p.PopcornExtendSecs,
	})
}

func (svc *auctionService) Get(ctx context.Context, id string) (*Auction, error) {
	return svc.store.Get(ctx, id)
}

func (svc *auctionService) List(ctx context.Context, shop string, status Status, limit, offset int) ([]*Auction, error) {
	return svc.store.List(ctx, shop, status, limit, offset)
}

func (svc *auctionService) Bids(ctx context.Context, id string) ([]Bid, error) {
	return svc.store.Bids(ctx, id)
}

// PlaceBid applies the bid and returns the new current bid. Stats and
// the outbid notice for the previous leader are best-effort side
// effects; their failure never fails the bid.
func (svc *auctionService) PlaceBid(ctx context.Context, id, bidder, contact string, amount float64) (float64, error) {
	now := time.Now().UTC()
	prev, err := svc.store.PlaceBid(ctx, id, bidder, contact, amount, now)
	if err != nil {
		switch {
		case errors.Is(err, ErrBidTooLow):
			metrics.BidsRejectedTotal.WithLabelValues("too_low").Inc()
		case errors.Is(err, ErrInvalidState):
			metrics.BidsRejectedTotal.WithLabelValues("invalid_state").Inc()
		}
		return 0, err
	}
	metrics.BidsAcceptedTotal.Inc()

	a, err := svc.store.Get(ctx, id)
	if err != nil {
		zap.L().Warn("bid.refetch", zap.String("auction", id), zap.Error(err))
		return amount, nil
	}

	if err := svc.stats.RecordBid(ctx, a.ShopDomain, bidder, amount); err != nil {
		zap.L().Warn("bid.stats", zap.String("auction", id), zap.Error(err))
	}

	if prev != nil && prev.Bidder != bidder {
		svc.queueOutbid(ctx, a, prev, amount)
	}
	return amount, nil
}

func (svc *auctionService) queueOutbid(ctx context.Context, a *Auction, prev *Bid, amount float64) {
	recipient := prev.Contact
	if recipient == "" {
		recipient = prev.Bidder
	}
	job := notification.Job{
		Type:      notification.TypeOutbid,
		Shop:      a.ShopDomain,
		Recipient: recipient,
		Data: map[string]string{
			"bidder":        prev.Bidder,
			"product_title": a.ProductTitle,
			"amount":        strconv.FormatFloat(amount, 'f', 2, 64),
			"ends_at":       a.EndsAt.UTC().Format(time.RFC3339),
		},
	}
	if err := svc.notifier.Enqueue(ctx, job); err != nil {
		zap.L().Warn("bid.outbid_enqueue", zap.String("auction", a.ID), zap.Error(err))
	}
}

func (svc *auctionService) Close(ctx context.Context, id string) error {
	return svc.store.MarkClosed(ctx, id)
}

// Reopen puts a failed auction back to ended after the merchant fixes
// the cause (a refreshed credential, a restored product), so the next
// sweep or a manual trigger retries fulfillment.
func (svc *auctionService) Reopen(ctx context.Context, id string) error {
	return svc.store.Reopen(ctx, id)
}

func (svc *auctionService) Delete(ctx context.Context, id string) error {
	return svc.store.SoftDelete(ctx, id)
}
