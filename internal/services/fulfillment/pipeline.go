// Package fulfillment turns an ended auction into a private,
// winner-priced listing on the commerce platform, exactly once, even
// when the sweep and the manual trigger race.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopauctions/internal/commerce/shopclient"
	"shopauctions/internal/metrics"
	"shopauctions/internal/services/auction"
	"shopauctions/internal/services/notification"
	"shopauctions/internal/services/shop"
	"shopauctions/internal/services/winner"
)

// ErrLockHeld means another invocation is already fulfilling this
// auction. A no-op, not a fault.
var ErrLockHeld = errors.New("fulfillment already in progress")

// Store is the slice of the auction store the pipeline mutates.
type Store interface {
	Get(ctx context.Context, id string) (*auction.Auction, error)
	Bids(ctx context.Context, id string) ([]auction.Bid, error)
	MarkNoWinner(ctx context.Context, id string, status auction.Status) error
	MarkFulfilled(ctx context.Context, id string, w auction.Bid, l auction.Listing) error
	MarkFailed(ctx context.Context, id string, cause string) error
}

// Credentials resolves the shop's platform token.
type Credentials interface {
	Credential(ctx context.Context, domain string) (string, error)
}

// Stats receives best-effort winner aggregates.
type Stats interface {
	RecordWin(ctx context.Context, domain, bidder string) error
}

// Platform is the commerce-platform API surface the pipeline calls.
type Platform interface {
	GetProduct(ctx context.Context, id int64) (*shopclient.Product, error)
	DuplicateProduct(ctx context.Context, id int64, newTitle, status string) (*shopclient.Product, error)
	UpdateVariantPrice(ctx context.Context, variantID int64, price float64) error
	CreateProduct(ctx context.Context, spec *shopclient.ProductSpec) (*shopclient.Product, error)
	ListingURL(handle string) string
}

// PlatformFactory builds a client scoped to one shop's credential.
type PlatformFactory func(shopDomain, token string) Platform

// Notifier queues notification jobs.
type Notifier interface {
	Enqueue(ctx context.Context, job notification.Job) error
}

type Pipeline struct {
	store       Store
	creds       Credentials
	stats       Stats
	newPlatform PlatformFactory
	notifier    Notifier
	locks       *KeyedLock
	lease       Leaser // optional cross-process exclusivity
	timeout     time.Duration
}

func NewPipeline(store Store, creds Credentials, stats Stats,
	factory PlatformFactory, notifier Notifier, lease Leaser, timeout time.Duration) *Pipeline {
	return &Pipeline{
		store:       store,
		creds:       creds,
		stats:       stats,
		newPlatform: factory,
		notifier:    notifier,
		locks:       NewKeyedLock(),
		lease:       lease,
		timeout:     timeout,
	}
}

// Fulfill processes one ended auction. Contract:
//   - duplicate and concurrent calls are suppressed by the per-auction
//     lock and the winner_processed guard;
//   - reserve-not-met and no-bid outcomes are applied without any
//     platform call;
//   - platform errors mark the auction failed and return nil so a
//     sweep can continue with its next auction;
//   - a missing credential marks the auction failed and returns the
//     error for the caller to surface.
func (p *Pipeline) Fulfill(ctx context.Context, auctionID, shopDomain string) error {
	key := shopDomain + "/" + auctionID
	if !p.locks.TryLock(key) {
		return ErrLockHeld
	}
	defer p.locks.Unlock(key)

	if p.lease != nil {
		ok, err := p.lease.Acquire(ctx, key, p.timeout+5*time.Second)
		if err != nil {
			// lease backend down: the in-process lock still guards this
			// instance, so continue rather than stall fulfillment
			zap.L().Warn("fulfill.lease", zap.String("auction", auctionID), zap.Error(err))
		} else if !ok {
			return ErrLockHeld
		} else {
			defer p.lease.Release(context.WithoutCancel(ctx), key)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	defer func() {
		metrics.FulfillmentDuration.Observe(time.Since(started).Seconds())
	}()

	a, err := p.store.Get(ctx, auctionID)
	if err != nil {
		return err
	}
	// defense in depth beyond the lock
	if a.WinnerProcessed || a.Status != auction.StatusEnded {
		return auction.ErrAlreadyProcessed
	}

	bids, err := p.store.Bids(ctx, auctionID)
	if err != nil {
		return err
	}

	out := winner.Resolve(a, bids)
	if out.Winner == nil {
		// ended with an empty ledger: nothing to fulfill, mark
		// processed so the sweep stops revisiting the row
		if err := p.store.MarkNoWinner(ctx, auctionID, auction.StatusEnded); err != nil {
			return err
		}
		metrics.FulfillmentsTotal.WithLabelValues("no_winner").Inc()
		return nil
	}
	if !out.ReserveMet {
		if err := p.store.MarkNoWinner(ctx, auctionID, auction.StatusReserveNotMet); err != nil {
			return err
		}
		metrics.FulfillmentsTotal.WithLabelValues("reserve_not_met").Inc()
		return nil
	}

	token, err := p.creds.Credential(ctx, shopDomain)
	if err != nil {
		if errors.Is(err, shop.ErrCredentialMissing) {
			p.markFailed(ctx, auctionID, err)
		}
		metrics.FulfillmentsTotal.WithLabelValues("failed").Inc()
		return err
	}

	platform := p.newPlatform(shopDomain, token)
	listing, err := p.createPrivateListing(ctx, platform, a, out.Winner.Amount)
	if err != nil {
		// non-retriable for this run: record and let the sweep move on
		p.markFailed(ctx, auctionID, err)
		metrics.FulfillmentsTotal.WithLabelValues("failed").Inc()
		return nil
	}

	if err := p.store.MarkFulfilled(ctx, auctionID, *out.Winner, listing); err != nil {
		return err
	}
	metrics.FulfillmentsTotal.WithLabelValues("fulfilled").Inc()

	// best-effort side effects; failures are logged, never propagated
	if err := p.stats.RecordWin(ctx, shopDomain, out.Winner.Bidder); err != nil {
		zap.L().Warn("fulfill.stats", zap.String("auction", auctionID), zap.Error(err))
	}
	recipient := out.Winner.Contact
	if recipient == "" {
		recipient = out.Winner.Bidder
	}
	job := notification.Job{
		Type:      notification.TypeWinner,
		Shop:      shopDomain,
		Recipient: recipient,
		Data: map[string]string{
			"bidder":        out.Winner.Bidder,
			"amount":        shopclient.FormatPrice(out.Winner.Amount),
			"product_title": a.ProductTitle,
			"listing_url":   listing.URL,
		},
	}
	if err := p.notifier.Enqueue(ctx, job); err != nil {
		zap.L().Warn("fulfill.notify", zap.String("auction", auctionID), zap.Error(err))
	}
	return nil
}

// createPrivateListing tries the duplicate-then-reprice strategy and
// falls back to manual creation when the platform refuses either call
// for a missing scope.
func (p *Pipeline) createPrivateListing(ctx context.Context, platform Platform,
	a *auction.Auction, amount float64) (auction.Listing, error) {

	product, err := platform.GetProduct(ctx, a.ProductID)
	if err != nil {
		return auction.Listing{}, fmt.Errorf("fetch product %d: %w", a.ProductID, err)
	}

	title := product.Title + " - Auction Winner"

	dup, err := platform.DuplicateProduct(ctx, a.ProductID, title, shopclient.StatusDraft)
	if err == nil {
		if len(dup.Variants) == 0 {
			return auction.Listing{}, fmt.Errorf("duplicated listing %d has no variants", dup.ID)
		}
		if err = platform.UpdateVariantPrice(ctx, dup.Variants[0].ID, amount); err == nil {
			return listingFrom(platform, dup), nil
		}
	}
	if !shopclient.IsPermission(err) {
		return auction.Listing{}, fmt.Errorf("duplicate strategy: %w", err)
	}

	// missing write scope for duplicate/reprice: build an equivalent
	// draft by hand with the price already set
	zap.L().Info("fulfill.fallback",
		zap.String("shop", a.ShopDomain),
		zap.Int64("product", a.ProductID))
	spec := &shopclient.ProductSpec{
		Title:    title,
		BodyHTML: product.BodyHTML,
		Vendor:   product.Vendor,
		Tags:     joinTags(product.Tags, "auction-winner"),
		Status:   shopclient.StatusDraft,
		Images:   product.Images,
		Variants: []shopclient.Variant{{Price: shopclient.FormatPrice(amount)}},
	}
	created, err := platform.CreateProduct(ctx, spec)
	if err != nil {
		return auction.Listing{}, fmt.Errorf("fallback create listing: %w", err)
	}
	return listingFrom(platform, created), nil
}

func (p *Pipeline) markFailed(ctx context.Context, auctionID string, cause error) {
	if err := p.store.MarkFailed(ctx, auctionID, cause.Error()); err != nil {
		zap.L().Error("fulfill.mark_failed", zap.String("auction", auctionID), zap.Error(err))
	}
}

func listingFrom(platform Platform, prod *shopclient.Product) auction.Listing {
	return auction.Listing{
		ID:     fmt.Sprintf("%d", prod.ID),
		Handle: prod.Handle,
		URL:    platform.ListingURL(prod.Handle),
	}
}

func joinTags(tags, extra string) string {
	if strings.TrimSpace(tags) == "" {
		return extra
	}
	return tags + ", " + extra
}
