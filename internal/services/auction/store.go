package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Listing is the private winner-only product created on the commerce
// platform, as recorded on the auction row.
type Listing struct {
	ID     string
	Handle string
	URL    string
}

// Store is the Postgres access layer for auctions and their bid
// ledger. All mutations of current_bid go through PlaceBid, which
// holds a row lock for the whole read-validate-write cycle.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const auctionColumns = `id, shop_domain, product_id, product_title, status,
	starts_at, ends_at, starting_bid, current_bid, buy_now_price, reserve_price,
	popcorn_enabled, popcorn_trigger_secs, popcorn_extend_secs,
	winner_bidder, winner_contact, winner_amount, winner_bid_at,
	listing_id, listing_handle, listing_url,
	winner_processed, winner_processed_at, processing_error,
	is_deleted, deleted_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(r rowScanner) (*Auction, error) {
	a := &Auction{}
	err := r.Scan(&a.ID, &a.ShopDomain, &a.ProductID, &a.ProductTitle, &a.Status,
		&a.StartsAt, &a.EndsAt, &a.StartingBid, &a.CurrentBid, &a.BuyNowPrice, &a.ReservePrice,
		&a.PopcornEnabled, &a.PopcornTriggerSecs, &a.PopcornExtendSecs,
		&a.WinnerBidder, &a.WinnerContact, &a.WinnerAmount, &a.WinnerBidAt,
		&a.ListingID, &a.ListingHandle, &a.ListingURL,
		&a.WinnerProcessed, &a.WinnerProcessedAt, &a.ProcessingError,
		&a.IsDeleted, &a.DeletedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new auction in pending state and returns its id.
func (s *Store) Create(ctx context.Context, a *Auction) (string, error) {
	if !a.EndsAt.After(a.StartsAt) {
		return "", ErrInvalidWindow
	}
	if a.StartingBid < 0 || a.ReservePrice < 0 {
		return "", fmt.Errorf("%w: negative price", ErrInvalidWindow)
	}
	id := uuid.NewString()
	const q = `
	INSERT INTO auctions (id, shop_domain, product_id, product_title, status,
	                      starts_at, ends_at, starting_bid, buy_now_price, reserve_price,
	                      popcorn_enabled, popcorn_trigger_secs, popcorn_extend_secs)
	     VALUES ($1,$2,$3,$4,'pending',$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := s.db.ExecContext(ctx, q,
		id, a.ShopDomain, a.ProductID, a.ProductTitle,
		a.StartsAt, a.EndsAt, a.StartingBid, a.BuyNowPrice, a.ReservePrice,
		a.PopcornEnabled, a.PopcornTriggerSecs, a.PopcornExtendSecs)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrDuplicateProduct
		}
		return "", err
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Auction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1 AND NOT is_deleted`, id)
	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *Store) List(ctx context.Context, shop string, status Status, limit, offset int) ([]*Auction, error) {
	if limit == 0 {
		limit = 10
	}
	q := `SELECT ` + auctionColumns + ` FROM auctions WHERE shop_domain = $1 AND NOT is_deleted`
	args := []any{shop}
	if status != "" {
		q += ` AND status = $2`
		args = append(args, status)
	}
	q += fmt.Sprintf(` ORDER BY ends_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*Auction, 0, limit)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// SoftDelete hides the auction from every scan and frees the
// (shop, product) pair for relisting.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auctions SET is_deleted = true, deleted_at = now() WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrNotFound)
}

// PlaceBid applies one bid inside a single transaction. The row lock
// taken by FOR UPDATE serializes concurrent bids on the same auction
// against each other and against the status sweep, so current_bid can
// never regress and a popcorn extension cannot race the active->ended
// transition. Returns the previous high bid, if any, so the caller can
// queue an outbid notice.
func (s *Store) PlaceBid(ctx context.Context, id, bidder, contact string, amount float64, now time.Time) (prev *Bid, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		status      Status
		startsAt    time.Time
		endsAt      time.Time
		startingBid float64
		currentBid  float64
		popcorn     bool
		triggerSecs int
		extendSecs  int
	)
	const sel = `
	SELECT status, starts_at, ends_at, starting_bid, current_bid,
	       popcorn_enabled, popcorn_trigger_secs, popcorn_extend_secs
	  FROM auctions WHERE id = $1 AND NOT is_deleted FOR UPDATE`
	err = tx.QueryRowContext(ctx, sel, id).Scan(&status, &startsAt, &endsAt,
		&startingBid, &currentBid, &popcorn, &triggerSecs, &extendSecs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if status != StatusActive || now.Before(startsAt) || !now.Before(endsAt) {
		return nil, ErrInvalidState
	}
	if amount <= currentBid || amount < startingBid {
		return nil, ErrBidTooLow
	}

	// remember who is being outbid before the ledger grows
	prevRow := tx.QueryRowContext(ctx, `
	SELECT auction_id, bidder, contact, amount, placed_at
	  FROM bids WHERE auction_id = $1
	 ORDER BY amount DESC, placed_at ASC LIMIT 1`, id)
	p := &Bid{}
	switch err = prevRow.Scan(&p.AuctionID, &p.Bidder, &p.Contact, &p.Amount, &p.PlacedAt); {
	case errors.Is(err, sql.ErrNoRows):
		p = nil
	case err != nil:
		return nil, err
	}

	newEndsAt := endsAt
	if popcorn && endsAt.Sub(now) <= time.Duration(triggerSecs)*time.Second {
		newEndsAt = endsAt.Add(time.Duration(extendSecs) * time.Second)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE auctions SET current_bid = $2, ends_at = $3 WHERE id = $1`,
		id, amount, newEndsAt); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO bids (auction_id, bidder, contact, amount, placed_at) VALUES ($1,$2,$3,$4,$5)`,
		id, bidder, contact, amount, now); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// Bids returns the full ledger in winner order: amount descending,
// then earliest first. The first row is the standing winner.
func (s *Store) Bids(ctx context.Context, id string) ([]Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT auction_id, bidder, contact, amount, placed_at
	  FROM bids WHERE auction_id = $1
	 ORDER BY amount DESC, placed_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bid
	for rows.Next() {
		var b Bid
		if err := rows.Scan(&b.AuctionID, &b.Bidder, &b.Contact, &b.Amount, &b.PlacedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MarkNoWinner finishes an auction that produced no fulfillable
// winner: either the reserve was unmet (status reserve_not_met) or no
// bids arrived (status stays ended). winner_processed is set so the
// sweep never picks the row up again.
func (s *Store) MarkNoWinner(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE auctions
	   SET status = $2, winner_bidder = NULL, winner_contact = NULL,
	       winner_amount = NULL, winner_bid_at = NULL,
	       winner_processed = true, winner_processed_at = now()
	 WHERE id = $1 AND NOT winner_processed`, id, status)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrAlreadyProcessed)
}

// MarkFulfilled records winner and listing in one atomic update. The
// winner_processed guard makes the call idempotent: a second caller
// gets ErrAlreadyProcessed, never a double write.
func (s *Store) MarkFulfilled(ctx context.Context, id string, w Bid, l Listing) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE auctions
	   SET winner_bidder = $2, winner_contact = $3, winner_amount = $4, winner_bid_at = $5,
	       listing_id = $6, listing_handle = $7, listing_url = $8,
	       winner_processed = true, winner_processed_at = now(), processing_error = NULL
	 WHERE id = $1 AND status = 'ended' AND NOT winner_processed`,
		id, w.Bidder, w.Contact, w.Amount, w.PlacedAt, l.ID, l.Handle, l.URL)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrAlreadyProcessed)
}

// MarkFailed parks the auction for manual remediation. The row keeps
// winner_processed = false so a re-trigger after the root cause is
// fixed can run the pipeline again.
func (s *Store) MarkFailed(ctx context.Context, id string, cause string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE auctions SET status = 'failed', processing_error = $2 WHERE id = $1`,
		id, cause)
	return err
}

// Reopen puts a failed auction back to ended so the next sweep (or a
// manual trigger) retries fulfillment.
func (s *Store) Reopen(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auctions SET status = 'ended', processing_error = NULL
		  WHERE id = $1 AND status = 'failed'`, id)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrInvalidState)
}

// MarkClosed is the explicit merchant action after an ended or
// reserve_not_met outcome.
func (s *Store) MarkClosed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE auctions SET status = 'closed'
	 WHERE id = $1 AND status IN ('ended','reserve_not_met') AND NOT is_deleted`, id)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrInvalidState)
}

// SweepStatuses promotes rows through the time-driven transitions with
// two range updates. Pure clock comparison, no business logic.
func (s *Store) SweepStatuses(ctx context.Context, now time.Time) (activated, ended int64, err error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE auctions SET status = 'active'
	 WHERE status = 'pending' AND starts_at <= $1 AND ends_at > $1 AND NOT is_deleted`, now)
	if err != nil {
		return 0, 0, err
	}
	activated, _ = res.RowsAffected()

	// pending rows whose whole window already elapsed go straight to
	// ended, so they still get winner resolution
	res, err = s.db.ExecContext(ctx, `
	UPDATE auctions SET status = 'ended'
	 WHERE status IN ('pending','active') AND ends_at <= $1 AND NOT is_deleted`, now)
	if err != nil {
		return activated, 0, err
	}
	ended, _ = res.RowsAffected()
	return activated, ended, nil
}

// ListUnprocessed returns the shop's ended auctions still awaiting
// winner fulfillment, oldest deadline first.
func (s *Store) ListUnprocessed(ctx context.Context, shop string, limit int) ([]*Auction, error) {
	if limit == 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+auctionColumns+` FROM auctions
	 WHERE shop_domain = $1 AND status = 'ended' AND NOT winner_processed AND NOT is_deleted
	 ORDER BY ends_at ASC LIMIT $2`, shop, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ClaimEndingSoon marks active auctions whose deadline falls inside
// the window as notified and returns them. The flag update and the
// read are one statement, so each auction is claimed at most once.
func (s *Store) ClaimEndingSoon(ctx context.Context, now time.Time, window time.Duration) ([]*Auction, error) {
	rows, err := s.db.QueryContext(ctx, `
	UPDATE auctions SET ending_soon_notified = true
	 WHERE status = 'active' AND NOT ending_soon_notified AND NOT is_deleted
	   AND ends_at > $1 AND ends_at <= $2
	RETURNING `+auctionColumns, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DistinctBidders lists each participant once, with the contact ref of
// their latest bid.
func (s *Store) DistinctBidders(ctx context.Context, id string) ([]Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT DISTINCT ON (bidder) auction_id, bidder, contact, amount, placed_at
	  FROM bids WHERE auction_id = $1
	 ORDER BY bidder, placed_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bid
	for rows.Next() {
		var b Bid
		if err := rows.Scan(&b.AuctionID, &b.Bidder, &b.Contact, &b.Amount, &b.PlacedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteExpiredFulfilled is the retention cleanup. Destructive, so the
// predicate is deliberately narrow: only ended rows that were fully
// processed longer ago than the cutoff are touched.
func (s *Store) DeleteExpiredFulfilled(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
	DELETE FROM auctions
	 WHERE status = 'ended' AND winner_processed AND winner_processed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func oneRowOr(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
