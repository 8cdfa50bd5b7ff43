package earnings

import (
	"net/http"
	"strconv"

	"fogsly/pkg/db/pagination"
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

// GET /v1/earnings
func (h *Handler) Get(c *gin.Context) {
	out, err := h.svc.GetUserEarnings(c.Request.Context(), middleware.MustIdentity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /v1/earnings/entries
func (h *Handler) Entries(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	rows, info, err := h.svc.ListEntries(c.Request.Context(), middleware.MustIdentity(c).UserID, page)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}

// GET /v1/earnings/verify
func (h *Handler) Verify(c *gin.Context) {
	valid, err := h.svc.VerifyChain(c.Request.Context(), middleware.MustIdentity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// POST /v1/earnings/transfer-to-wallet
func (h *Handler) TransferToWallet(c *gin.Context) {
	var req TransferToWalletParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.UserID = middleware.MustIdentity(c).UserID

	entry, err := h.svc.TransferEarningsToWallet(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// POST /v1/earnings/withdrawals
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req WithdrawalParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.UserID = middleware.MustIdentity(c).UserID

	out, err := h.svc.RequestWithdrawal(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GET /v1/earnings/withdrawals
func (h *Handler) MyWithdrawals(c *gin.Context) {
	var f WithdrawalFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}
	f.UserID = middleware.MustIdentity(c).UserID
	h.listWithdrawals(c, f)
}

// GET /v1/admin/withdrawals
func (h *Handler) AllWithdrawals(c *gin.Context) {
	var f WithdrawalFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}
	f.UserID = c.Query("user_id")
	h.listWithdrawals(c, f)
}

func (h *Handler) listWithdrawals(c *gin.Context, f WithdrawalFilter) {
	rows, info, err := h.svc.ListWithdrawals(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}

// POST /v1/admin/withdrawals/:id/resolve
func (h *Handler) ResolveWithdrawal(c *gin.Context) {
	var req ResolveWithdrawalParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.ID = c.Param("id")
	req.AdminID = middleware.MustIdentity(c).UserID

	out, err := h.svc.ResolveWithdrawal(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /v1/leaderboard
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	rows, err := h.svc.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
