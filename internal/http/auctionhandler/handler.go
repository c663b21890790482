package auctionhandler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shopauctions/internal/services/auction"
	"shopauctions/internal/services/fulfillment"
	"shopauctions/internal/services/shop"
)

// Fulfiller is the manual-trigger entry into the pipeline. It must
// respect the same lock and winner_processed guard as the sweep.
type Fulfiller interface {
	Fulfill(ctx context.Context, auctionID, shopDomain string) error
}

type Handler struct {
	svc  auction.IAuctionService
	pipe Fulfiller
}

func New(svc auction.IAuctionService, pipe Fulfiller) *Handler {
	return &Handler{svc: svc, pipe: pipe}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/auctions", h.list)
	r.POST("/auctions", h.create)
	r.GET("/auctions/:id", h.info)
	r.GET("/auctions/:id/bids", h.bids)
	r.POST("/auctions/:id/bid", h.bid)
	r.POST("/auctions/:id/close", h.close)
	r.POST("/auctions/:id/reopen", h.reopen)
	r.POST("/auctions/:id/fulfill", h.fulfill)
	r.DELETE("/auctions/:id", h.remove)
}

// @Summary		Create an auction
// @Description	Lists a product for auction. The record starts pending and activates once starts_at passes.
// @Tags			Auctions
// @Param			body	body		CreateAuctionBody	true	"Auction payload"
// @Success		201		{object}	CreateAuctionResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/auctions [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateAuctionBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	id, err := h.svc.Create(ginCtx.Request.Context(), auction.CreateParams{
		ShopDomain:         body.ShopDomain,
		ProductID:          body.ProductID,
		ProductTitle:       body.ProductTitle,
		StartsAt:           body.StartsAt.UTC(),
		EndsAt:             body.EndsAt.UTC(),
		StartingBid:        body.StartingBid,
		BuyNowPrice:        body.BuyNowPrice,
		ReservePrice:       body.ReservePrice,
		PopcornEnabled:     body.PopcornEnabled,
		PopcornTriggerSecs: body.PopcornTriggerSecs,
		PopcornExtendSecs:  body.PopcornExtendSecs,
	})
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, &CreateAuctionResponse{ID: id})
}

// @Summary		Get auction details
// @Description	Returns full information about a single auction, including winner and listing metadata.
// @Tags			Auctions
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	AuctionDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) info(ginCtx *gin.Context) {
	a, err := h.svc.Get(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, toDTO(a))
}

// @Summary		List auctions
// @Description	Retrieves a paginated list of a shop's auctions, optionally filtered by status.
// @Tags			Auctions
// @Param			shop	query		string	true	"Shop domain"
// @Param			status	query		string	false	"Status filter"			Enums(pending,active,ended,reserve_not_met,closed,failed)
// @Param			limit	query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		AuctionDTO
// @Failure		400		{object}	ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(ginCtx *gin.Context) {
	var q ListAuctionsQuery
	if err := ginCtx.ShouldBindQuery(&q); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.List(ginCtx.Request.Context(), q.Shop, auction.Status(q.Status), q.Limit, q.Offset)
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	dtos := make([]*AuctionDTO, 0, len(out))
	for _, a := range out {
		dtos = append(dtos, toDTO(a))
	}
	ginCtx.JSON(http.StatusOK, dtos)
}

// @Summary		List bids
// @Description	Returns the auction's bid ledger in winner order.
// @Tags			Auctions
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{array}		BidDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id}/bids [get]
func (h *Handler) bids(ginCtx *gin.Context) {
	ledger, err := h.svc.Bids(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	dtos := make([]BidDTO, 0, len(ledger))
	for _, b := range ledger {
		dtos = append(dtos, BidDTO{Bidder: b.Bidder, Amount: b.Amount, PlacedAt: b.PlacedAt})
	}
	ginCtx.JSON(http.StatusOK, dtos)
}

// @Summary		Place a bid
// @Description	Bidder places a bid strictly above the current high bid.
// @Tags			Auctions
// @Param			id		path		string			true	"Auction ID"
// @Param			body	body		PlaceBidBody	true	"Bid payload"
// @Success		200		{object}	PlaceBidResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/auctions/{id}/bid [post]
func (h *Handler) bid(ginCtx *gin.Context) {
	var body PlaceBidBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	current, err := h.svc.PlaceBid(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.Bidder, body.Contact, body.Amount)
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, &PlaceBidResponse{CurrentBid: current})
}

// @Summary		Close an auction
// @Description	Merchant closes an ended or reserve_not_met auction.
// @Tags			Auctions
// @Param			id	path	string	true	"Auction ID"
// @Success		202
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id}/close [post]
func (h *Handler) close(ginCtx *gin.Context) {
	if err := h.svc.Close(ginCtx.Request.Context(), ginCtx.Param("id")); err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Reopen a failed auction
// @Description	Puts a failed auction back to ended once its cause is fixed, so the next sweep or a manual fulfill retries it.
// @Tags			Auctions
// @Param			id	path	string	true	"Auction ID"
// @Success		202
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id}/reopen [post]
func (h *Handler) reopen(ginCtx *gin.Context) {
	if err := h.svc.Reopen(ginCtx.Request.Context(), ginCtx.Param("id")); err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Trigger fulfillment
// @Description	Runs winner fulfillment for an ended auction ahead of the next sweep. Honors the per-auction lock and the already-processed guard.
// @Tags			Auctions
// @Param			id	path	string	true	"Auction ID"
// @Success		202
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id}/fulfill [post]
func (h *Handler) fulfill(ginCtx *gin.Context) {
	ctx := ginCtx.Request.Context()
	a, err := h.svc.Get(ctx, ginCtx.Param("id"))
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	if err := h.pipe.Fulfill(ctx, a.ID, a.ShopDomain); err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Delete an auction
// @Description	Soft delete: hides the auction and frees the product for relisting.
// @Tags			Auctions
// @Param			id	path	string	true	"Auction ID"
// @Success		204
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id} [delete]
func (h *Handler) remove(ginCtx *gin.Context) {
	if err := h.svc.Delete(ginCtx.Request.Context(), ginCtx.Param("id")); err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

func writeError(ginCtx *gin.Context, err error) {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		ginCtx.JSON(http.StatusNotFound, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, auction.ErrInvalidWindow):
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, auction.ErrDuplicateProduct),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrInvalidState),
		errors.Is(err, auction.ErrAlreadyProcessed),
		errors.Is(err, fulfillment.ErrLockHeld):
		ginCtx.JSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, shop.ErrCredentialMissing):
		ginCtx.JSON(http.StatusFailedDependency, &ErrorResponse{Error: err.Error()})
	default:
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
	}
}

func toDTO(a *auction.Auction) *AuctionDTO {
	now := time.Now().UTC()
	return &AuctionDTO{
		ID:                a.ID,
		ShopDomain:        a.ShopDomain,
		ProductID:         a.ProductID,
		ProductTitle:      a.ProductTitle,
		Status:            string(a.Status),
		StartsAt:          a.StartsAt,
		EndsAt:            a.EndsAt,
		StartingBid:       a.StartingBid,
		CurrentBid:        a.CurrentBid,
		BuyNowPrice:       a.BuyNowPrice,
		ReservePrice:      a.ReservePrice,
		IsActive:          a.IsActive(now),
		SecondsRemaining:  a.SecondsRemaining(now),
		WinnerBidder:      a.WinnerBidder,
		WinnerAmount:      a.WinnerAmount,
		WinnerBidAt:       a.WinnerBidAt,
		ListingID:         a.ListingID,
		ListingHandle:     a.ListingHandle,
		ListingURL:        a.ListingURL,
		WinnerProcessed:   a.WinnerProcessed,
		WinnerProcessedAt: a.WinnerProcessedAt,
		ProcessingError:   a.ProcessingError,
	}
}
