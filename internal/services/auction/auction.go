package auction

import (
	"errors"
	"time"
)

// Status values an auction moves through. pending/active/ended are
// time-driven; reserve_not_met, closed and failed are decided by the
// fulfillment pipeline or an explicit merchant action.
type Status string

const (
	StatusPending       Status = "pending"
	StatusActive        Status = "active"
	StatusEnded         Status = "ended"
	StatusReserveNotMet Status = "reserve_not_met"
	StatusClosed        Status = "closed"
	StatusFailed        Status = "failed"
)

var (
	ErrNotFound         = errors.New("auction not found")
	ErrDuplicateProduct = errors.New("product already has a live auction")
	ErrInvalidState     = errors.New("auction not open for bidding")
	ErrBidTooLow        = errors.New("bid must be higher than current bid")
	ErrAlreadyProcessed = errors.New("auction already processed")
	ErrInvalidWindow    = errors.New("ends_at must be after starts_at")
)

// Auction is the persisted record for one time-boxed sale.
type Auction struct {
	ID           string
	ShopDomain   string
	ProductID    int64
	ProductTitle string
	Status       Status
	StartsAt     time.Time
	EndsAt       time.Time

	StartingBid  float64
	CurrentBid   float64 // 0 until the first bid, then >= StartingBid, non-decreasing
	BuyNowPrice  *float64
	ReservePrice float64 // 0 = no reserve

	PopcornEnabled     bool
	PopcornTriggerSecs int
	PopcornExtendSecs  int

	WinnerBidder  *string
	WinnerContact *string
	WinnerAmount  *float64
	WinnerBidAt   *time.Time

	ListingID     *string
	ListingHandle *string
	ListingURL    *string

	WinnerProcessed   bool
	WinnerProcessedAt *time.Time
	ProcessingError   *string

	IsDeleted bool
	DeletedAt *time.Time
	CreatedAt time.Time
}

// Bid is one entry of the append-only ledger.
type Bid struct {
	AuctionID string
	Bidder    string
	Contact   string
	Amount    float64
	PlacedAt  time.Time
}

// IsActive reports whether the auction is open for bids at t. The
// stored status may lag the clock by up to one sweep interval, so
// read paths compute this from the window as well.
func (a *Auction) IsActive(t time.Time) bool {
	return a.Status == StatusActive && !t.Before(a.StartsAt) && t.Before(a.EndsAt)
}

// SecondsRemaining is 0 once the deadline has passed.
func (a *Auction) SecondsRemaining(t time.Time) int64 {
	d := a.EndsAt.Sub(t)
	if d <= 0 {
		return 0
	}
	return int64(d.Seconds())
}
