package auction

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

const bidSelectCols = "status, starts_at, ends_at, starting_bid, current_bid"

func bidSelectRows(status Status, startsAt, endsAt time.Time, startingBid, currentBid float64,
	popcorn bool, trigger, extend int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"status", "starts_at", "ends_at", "starting_bid", "current_bid",
		"popcorn_enabled", "popcorn_trigger_secs", "popcorn_extend_secs"}).
		AddRow(string(status), startsAt, endsAt, startingBid, currentBid, popcorn, trigger, extend)
}

func emptyPrevBid() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"auction_id", "bidder", "contact", "amount", "placed_at"})
}

func TestPlaceBidAccepted(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT " + bidSelectCols).
		WillReturnRows(bidSelectRows(StatusActive, now.Add(-time.Hour), now.Add(time.Hour), 10, 12, false, 60, 60))
	mock.ExpectQuery("SELECT auction_id, bidder, contact, amount, placed_at").
		WillReturnRows(emptyPrevBid().AddRow("a1", "alice", "alice@x", 12.0, now.Add(-time.Minute)))
	mock.ExpectExec("UPDATE auctions SET current_bid").
		WithArgs("a1", 15.0, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bids").
		WithArgs("a1", "bob", "bob@x", 15.0, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	prev, err := store.PlaceBid(context.Background(), "a1", "bob", "bob@x", 15, now)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "alice", prev.Bidder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBidFirstBidNoPrevious(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT " + bidSelectCols).
		WillReturnRows(bidSelectRows(StatusActive, now.Add(-time.Hour), now.Add(time.Hour), 10, 0, false, 60, 60))
	mock.ExpectQuery("SELECT auction_id, bidder, contact, amount, placed_at").
		WillReturnRows(emptyPrevBid())
	mock.ExpectExec("UPDATE auctions SET current_bid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bids").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	prev, err := store.PlaceBid(context.Background(), "a1", "bob", "", 10, now)
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBidTooLow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT " + bidSelectCols).
		WillReturnRows(bidSelectRows(StatusActive, now.Add(-time.Hour), now.Add(time.Hour), 10, 20, false, 60, 60))
	mock.ExpectRollback()

	_, err := store.PlaceBid(context.Background(), "a1", "bob", "", 20, now)
	assert.ErrorIs(t, err, ErrBidTooLow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBidBelowStartingBid(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT " + bidSelectCols).
		WillReturnRows(bidSelectRows(StatusActive, now.Add(-time.Hour), now.Add(time.Hour), 10, 0, false, 60, 60))
	mock.ExpectRollback()

	_, err := store.PlaceBid(context.Background(), "a1", "bob", "", 5, now)
	assert.ErrorIs(t, err, ErrBidTooLow)
}

func TestPlaceBidEndedAuction(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT " + bidSelectCols).
		WillReturnRows(bidSelectRows(StatusEnded, now.Add(-2*time.Hour), now.Add(-time.Hour), 10, 20, false, 60, 60))
	mock.ExpectRollback()

	_, err := store.PlaceBid(context.Background(), "a1", "bob", "", 30, now)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPlaceBidAfterDeadlineStaleStatus(t *testing.T) {
	// the sweep may not have flipped the row yet; the clock still wins
	store, mock := newMockStore(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT " + bidSelectCols).
		WillReturnRows(bidSelectRows(StatusActive, now.Add(-2*time.Hour), now.Add(-time.Second), 10, 20, false, 60, 60))
	mock.ExpectRollback()

	_, err := store.PlaceBid(context.Background(), "a1", "bob", "", 30, now)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPlaceBidPopcornExtension(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	endsAt := now.Add(30 * time.Second) // inside the 60 s trigger window

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT " + bidSelectCols).
		WillReturnRows(bidSelectRows(StatusActive, now.Add(-time.Hour), endsAt, 10, 12, true, 60, 120))
	mock.ExpectQuery("SELECT auction_id, bidder, contact, amount, placed_at").
		WillReturnRows(emptyPrevBid())
	mock.ExpectExec("UPDATE auctions SET current_bid").
		WithArgs("a1", 15.0, endsAt.Add(120*time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bids").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := store.PlaceBid(context.Background(), "a1", "bob", "", 15, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBidOutsidePopcornWindowNoExtension(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	endsAt := now.Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT " + bidSelectCols).
		WillReturnRows(bidSelectRows(StatusActive, now.Add(-time.Hour), endsAt, 10, 12, true, 60, 120))
	mock.ExpectQuery("SELECT auction_id, bidder, contact, amount, placed_at").
		WillReturnRows(emptyPrevBid())
	mock.ExpectExec("UPDATE auctions SET current_bid").
		WithArgs("a1", 15.0, endsAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bids").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := store.PlaceBid(context.Background(), "a1", "bob", "", 15, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBidUnknownAuction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT " + bidSelectCols).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	_, err := store.PlaceBid(context.Background(), "nope", "bob", "", 15, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkFulfilledIdempotent(t *testing.T) {
	store, mock := newMockStore(t)
	w := Bid{Bidder: "bob", Contact: "bob@x", Amount: 20, PlacedAt: time.Now()}
	l := Listing{ID: "99", Handle: "lamp-auction-winner", URL: "https://s/products/lamp-auction-winner"}

	mock.ExpectExec("UPDATE auctions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.MarkFulfilled(context.Background(), "a1", w, l))

	// second call matches no row: the winner_processed guard holds
	mock.ExpectExec("UPDATE auctions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.MarkFulfilled(context.Background(), "a1", w, l), ErrAlreadyProcessed)
}

func TestMarkNoWinnerGuarded(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE auctions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.MarkNoWinner(context.Background(), "a1", StatusReserveNotMet))

	mock.ExpectExec("UPDATE auctions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.MarkNoWinner(context.Background(), "a1", StatusReserveNotMet), ErrAlreadyProcessed)
}

func TestReopenFailedAuction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE auctions SET status = 'ended'").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Reopen(context.Background(), "a1"))

	// only failed rows reopen; anything else is a state conflict
	mock.ExpectExec("UPDATE auctions SET status = 'ended'").
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.Reopen(context.Background(), "a1"), ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBindsPagination(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, shop_domain").
		WithArgs("demo", "active", 5, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.List(context.Background(), "demo", StatusActive, 5, 10)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepStatuses(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE auctions SET status = 'active'").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE auctions SET status = 'ended'").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	activated, ended, err := store.SweepStatuses(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), activated)
	assert.Equal(t, int64(2), ended)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredFulfilled(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)

	// the predicate only ever matches processed rows
	mock.ExpectExec("DELETE FROM auctions").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.DeleteExpiredFulfilled(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, shop_domain").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejectsInvalidWindow(t *testing.T) {
	store, _ := newMockStore(t)
	now := time.Now()
	_, err := store.Create(context.Background(), &Auction{
		ShopDomain: "s", ProductID: 1,
		StartsAt: now, EndsAt: now.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}
