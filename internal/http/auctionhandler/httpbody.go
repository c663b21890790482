package auctionhandler

import "time"

type CreateAuctionBody struct {
	ShopDomain   string    `json:"shop_domain"   binding:"required"       example:"demo.myshop.example"`
	ProductID    int64     `json:"product_id"    binding:"required"       example:"88231"`
	ProductTitle string    `json:"product_title" binding:"required"       example:"Vintage Lamp"`
	StartsAt     time.Time `json:"starts_at"     binding:"required"       example:"2025-07-27T16:05:05Z"`
	EndsAt       time.Time `json:"ends_at"       binding:"required"       example:"2025-07-28T16:05:05Z"`
	StartingBid  float64   `json:"starting_bid"  binding:"gte=0"          example:"10"`
	BuyNowPrice  *float64  `json:"buy_now_price" binding:"omitempty,gt=0" example:"100"`
	ReservePrice float64   `json:"reserve_price" binding:"gte=0"          example:"25"`

	PopcornEnabled     bool `json:"popcorn_enabled"`
	PopcornTriggerSecs int  `json:"popcorn_trigger_secs" binding:"gte=0" example:"60"`
	PopcornExtendSecs  int  `json:"popcorn_extend_secs"  binding:"gte=0" example:"60"`
} // @name CreateAuctionRequest

type PlaceBidBody struct {
	Bidder  string  `json:"bidder"  binding:"required"      example:"user123"`
	Contact string  `json:"contact" binding:"omitempty"     example:"user123@mail.example"`
	Amount  float64 `json:"amount"  binding:"required,gt=0" example:"15"`
} // @name PlaceBidRequest

type PlaceBidResponse struct {
	CurrentBid float64 `json:"current_bid"`
} // @name PlaceBidResponse

type CreateAuctionResponse struct {
	ID string `json:"id"`
} // @name CreateAuctionResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListAuctionsQuery struct {
	Shop   string `form:"shop"    binding:"required"`
	Status string `form:"status"  binding:"omitempty,oneof=pending active ended reserve_not_met closed failed"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListAuctionsQuery

type AuctionDTO struct {
	ID           string    `json:"id"`
	ShopDomain   string    `json:"shop_domain"`
	ProductID    int64     `json:"product_id"`
	ProductTitle string    `json:"product_title"`
	Status       string    `json:"status"      example:"active"`
	StartsAt     time.Time `json:"starts_at"   example:"2025-07-27T16:05:05Z"`
	EndsAt       time.Time `json:"ends_at"     example:"2025-07-28T16:05:05Z"`

	StartingBid  float64  `json:"starting_bid"`
	CurrentBid   float64  `json:"current_bid"`
	BuyNowPrice  *float64 `json:"buy_now_price,omitempty"`
	ReservePrice float64  `json:"reserve_price"`

	IsActive         bool  `json:"is_active"`
	SecondsRemaining int64 `json:"seconds_remaining"`

	WinnerBidder *string    `json:"winner_bidder,omitempty"`
	WinnerAmount *float64   `json:"winner_amount,omitempty"`
	WinnerBidAt  *time.Time `json:"winner_bid_at,omitempty"`

	ListingID     *string `json:"listing_id,omitempty"`
	ListingHandle *string `json:"listing_handle,omitempty"`
	ListingURL    *string `json:"listing_url,omitempty"`

	WinnerProcessed   bool       `json:"winner_processed"`
	WinnerProcessedAt *time.Time `json:"winner_processed_at,omitempty"`
	ProcessingError   *string    `json:"processing_error,omitempty"`
} // @name Auction

type BidDTO struct {
	Bidder   string    `json:"bidder"`
	Amount   float64   `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
} // @name Bid
