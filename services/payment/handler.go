package payment

import (
	"net/http"

	"fogsly/pkg/errutil"
	"fogsly/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const maxScreenshotSize = 10 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GET /v1/bank-accounts
func (h *Handler) BankAccounts(c *gin.Context) {
	rows, err := h.svc.ListBankAccounts(c.Request.Context(), true)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// GET /v1/admin/bank-accounts
func (h *Handler) AllBankAccounts(c *gin.Context) {
	rows, err := h.svc.ListBankAccounts(c.Request.Context(), false)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// POST /v1/admin/bank-accounts
func (h *Handler) CreateBankAccount(c *gin.Context) {
	var req BankAccountParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	acc, err := h.svc.CreateBankAccount(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, acc)
}

// PATCH /v1/admin/bank-accounts/:id
func (h *Handler) UpdateBankAccount(c *gin.Context) {
	var req BankAccountUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	acc, err := h.svc.UpdateBankAccount(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// POST /v1/payments
func (h *Handler) Create(c *gin.Context) {
	var req CreatePaymentParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.UserID = middleware.MustIdentity(c).UserID

	out, err := h.svc.CreatePaymentRequest(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GET /v1/payments
func (h *Handler) List(c *gin.Context) {
	var f PaymentFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}
	f.UserID = middleware.MustIdentity(c).UserID
	h.list(c, f)
}

// GET /v1/admin/payments
func (h *Handler) AdminList(c *gin.Context) {
	var f PaymentFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}
	f.UserID = c.Query("user_id")
	h.list(c, f)
}

func (h *Handler) list(c *gin.Context, f PaymentFilter) {
	rows, info, err := h.svc.ListPaymentRequests(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}

// GET /v1/payments/:id
func (h *Handler) Get(c *gin.Context) {
	out, err := h.svc.GetPaymentRequest(c.Request.Context(), middleware.MustIdentity(c).UserID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /v1/payments/:id/evidence (multipart: transaction_id, screenshot)
func (h *Handler) AttachEvidence(c *gin.Context) {
	p := EvidenceParams{
		UserID:        middleware.MustIdentity(c).UserID,
		ID:            c.Param("id"),
		TransactionID: c.PostForm("transaction_id"),
	}

	if file, err := c.FormFile("screenshot"); err == nil {
		if file.Size > maxScreenshotSize {
			_ = c.Error(errutil.BadRequest("screenshot too large", nil))
			return
		}
		f, err := file.Open()
		if err != nil {
			_ = c.Error(errutil.BadRequest("failed to read screenshot", err))
			return
		}
		defer f.Close()

		p.Filename = file.Filename
		p.ContentType = file.Header.Get("Content-Type")
		p.Size = file.Size
		p.Body = f
	}

	out, err := h.svc.AttachEvidence(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /v1/admin/payments/:id/processing
func (h *Handler) MarkProcessing(c *gin.Context) {
	out, err := h.svc.MarkProcessing(c.Request.Context(), middleware.MustIdentity(c).UserID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /v1/admin/payments/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	out, err := h.svc.Approve(c.Request.Context(), middleware.MustIdentity(c).UserID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /v1/admin/payments/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.Reject(c.Request.Context(), middleware.MustIdentity(c).UserID, c.Param("id"), req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
