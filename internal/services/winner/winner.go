// Package winner decides the outcome of an ended auction. Resolution
// is a pure function of the bid ledger so the same ledger always
// yields the same winner.
package winner

import (
	"sort"

	"shopauctions/internal/services/auction"
)

// Outcome of resolving an ended auction.
type Outcome struct {
	// Winner is nil when the ledger is empty.
	Winner *auction.Bid
	// ReserveMet is true when no reserve is set or the top bid covers
	// it. With an empty ledger the reserve question is moot and
	// ReserveMet stays true.
	ReserveMet bool
}

// Resolve picks the winning bid: highest amount, earliest timestamp on
// ties. The input slice is not modified.
func Resolve(a *auction.Auction, bids []auction.Bid) Outcome {
	if len(bids) == 0 {
		return Outcome{Winner: nil, ReserveMet: true}
	}

	sorted := make([]auction.Bid, len(bids))
	copy(sorted, bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Amount != sorted[j].Amount {
			return sorted[i].Amount > sorted[j].Amount
		}
		return sorted[i].PlacedAt.Before(sorted[j].PlacedAt)
	})

	top := sorted[0]
	met := a.ReservePrice <= 0 || top.Amount >= a.ReservePrice
	return Outcome{Winner: &top, ReserveMet: met}
}
