package settings

import (
	"net/http"

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

// GET /v1/settings/fog-coin
func (h *Handler) Get(c *gin.Context) {
	out, err := h.svc.GetFogCoinSettings(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// PUT /v1/admin/settings/fog-coin
func (h *Handler) Update(c *gin.Context) {
	var req UpdateParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.AdminID = middleware.MustIdentity(c).UserID

	out, err := h.svc.UpdateFogCoinSettings(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /v1/admin/settings/fog-coin/history
func (h *Handler) History(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	rows, info, err := h.svc.ListHistory(c.Request.Context(), page)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}
