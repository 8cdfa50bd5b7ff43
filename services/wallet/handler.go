package wallet

import (
	"net/http"

	"fogsly/pkg/errutil"
	"fogsly/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GET /v1/wallet
func (h *Handler) Get(c *gin.Context) {
	w, err := h.svc.GetWallet(c.Request.Context(), middleware.MustIdentity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// GET /v1/wallet/balance
func (h *Handler) Balance(c *gin.Context) {
	b, err := h.svc.GetBalance(c.Request.Context(), middleware.MustIdentity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /v1/wallet/validate/:address
func (h *Handler) Validate(c *gin.Context) {
	address := c.Param("address")
	if !ValidateAddress(address) {
		c.JSON(http.StatusOK, gin.H{"valid": false, "exists": false})
		return
	}

	_, err := h.svc.GetWalletByAddress(c.Request.Context(), address)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"valid": true, "exists": true})
	case errutil.IsCode(err, errutil.StatusNotFound):
		c.JSON(http.StatusOK, gin.H{"valid": true, "exists": false})
	default:
		_ = c.Error(err)
	}
}

// POST /v1/wallet/transfers
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.SenderID = middleware.MustIdentity(c).UserID
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	t, err := h.svc.TransferFogCoins(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// GET /v1/wallet/transfers
func (h *Handler) List(c *gin.Context) {
	var f TransferFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}
	f.UserID = middleware.MustIdentity(c).UserID

	rows, info, err := h.svc.ListTransfers(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}

// GET /v1/wallet/transfers/:id
func (h *Handler) GetTransfer(c *gin.Context) {
	t, err := h.svc.GetTransfer(c.Request.Context(), middleware.MustIdentity(c).UserID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /v1/wallet/transfers/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	t, err := h.svc.CancelTransfer(c.Request.Context(), middleware.MustIdentity(c).UserID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}
