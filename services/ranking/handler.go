package ranking

import (
	"net/http"

	"fogsly/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GET /v1/rank
func (h *Handler) MyRank(c *gin.Context) {
	rank, err := h.svc.GetUserRank(c.Request.Context(), middleware.MustIdentity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rank)
}
