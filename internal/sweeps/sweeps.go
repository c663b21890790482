// Package sweeps holds the periodic task bodies the scheduler runs:
// the time-driven status sweep, the fulfillment sweep, the ending-soon
// notifier and the retention cleanup.
package sweeps

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"shopauctions/internal/metrics"
	"shopauctions/internal/services/auction"
	"shopauctions/internal/services/fulfillment"
	"shopauctions/internal/services/notification"
	"shopauctions/internal/services/shop"

	"github.com/shopspring/decimal"
)

// Status promotes pending->active and active/pending->ended with pure
// range updates. No business logic lives here.
func Status(store *auction.Store) func(ctx context.Context) {
	return func(ctx context.Context) {
		activated, ended, err := store.SweepStatuses(ctx, time.Now().UTC())
		if err != nil {
			zap.L().Error("sweep.status", zap.Error(err))
			return
		}
		metrics.SweepTransitionsTotal.WithLabelValues("pending_active").Add(float64(activated))
		metrics.SweepTransitionsTotal.WithLabelValues("active_ended").Add(float64(ended))
		if activated > 0 || ended > 0 {
			zap.L().Info("sweep.status",
				zap.Int64("activated", activated), zap.Int64("ended", ended))
		}
	}
}

// Fulfillment discovers ended, unprocessed auctions per credentialed
// shop and runs the pipeline sequentially. One auction's failure never
// aborts the sweep for the rest.
func Fulfillment(shops *shop.Store, store *auction.Store, pipe *fulfillment.Pipeline) func(ctx context.Context) {
	return func(ctx context.Context) {
		domains, err := shops.ListWithCredentials(ctx)
		if err != nil {
			zap.L().Error("sweep.fulfillment.shops", zap.Error(err))
			return
		}
		for _, domain := range domains {
			pending, err := store.ListUnprocessed(ctx, domain, 0)
			if err != nil {
				zap.L().Error("sweep.fulfillment.list",
					zap.String("shop", domain), zap.Error(err))
				continue
			}
			for _, a := range pending {
				err := pipe.Fulfill(ctx, a.ID, domain)
				switch {
				case err == nil:
				case errors.Is(err, fulfillment.ErrLockHeld),
					errors.Is(err, auction.ErrAlreadyProcessed):
					// a concurrent invocation got there first; a no-op
					zap.L().Debug("sweep.fulfillment.skip",
						zap.String("auction", a.ID), zap.Error(err))
				default:
					zap.L().Warn("sweep.fulfillment",
						zap.String("shop", domain),
						zap.String("auction", a.ID), zap.Error(err))
				}
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// endingSoonWindow is how far ahead the notifier looks. Auctions are
// claimed once; a popcorn extension does not re-trigger the notice.
const endingSoonWindow = 15 * time.Minute

// EndingSoon queues an ending-soon notice to every participant who is
// not currently leading.
func EndingSoon(store *auction.Store, queue *notification.Queue) func(ctx context.Context) {
	return func(ctx context.Context) {
		claimed, err := store.ClaimEndingSoon(ctx, time.Now().UTC(), endingSoonWindow)
		if err != nil {
			zap.L().Error("sweep.ending_soon", zap.Error(err))
			return
		}
		for _, a := range claimed {
			bidders, err := store.DistinctBidders(ctx, a.ID)
			if err != nil {
				zap.L().Warn("sweep.ending_soon.bidders",
					zap.String("auction", a.ID), zap.Error(err))
				continue
			}
			for _, b := range bidders {
				if b.Amount >= a.CurrentBid {
					continue // the leader needs no nudge
				}
				recipient := b.Contact
				if recipient == "" {
					recipient = b.Bidder
				}
				job := notification.Job{
					Type:      notification.TypeEndingSoon,
					Shop:      a.ShopDomain,
					Recipient: recipient,
					Data: map[string]string{
						"bidder":        b.Bidder,
						"product_title": a.ProductTitle,
						"amount":        decimal.NewFromFloat(a.CurrentBid).StringFixed(2),
						"ends_at":       a.EndsAt.UTC().Format(time.RFC3339),
					},
				}
				if err := queue.Enqueue(ctx, job); err != nil {
					zap.L().Warn("sweep.ending_soon.enqueue",
						zap.String("auction", a.ID), zap.Error(err))
				}
			}
		}
	}
}

// Retention deletes fulfilled auctions past the retention window. The
// store predicate only ever matches winner_processed rows, so the
// destructive path cannot reach anything still awaiting fulfillment.
func Retention(store *auction.Store, keep time.Duration) func(ctx context.Context) {
	return func(ctx context.Context) {
		n, err := store.DeleteExpiredFulfilled(ctx, time.Now().UTC().Add(-keep))
		if err != nil {
			zap.L().Error("sweep.retention", zap.Error(err))
			return
		}
		if n > 0 {
			metrics.RetentionDeletedTotal.Add(float64(n))
			zap.L().Info("sweep.retention", zap.Int64("deleted", n))
		}
	}
}
