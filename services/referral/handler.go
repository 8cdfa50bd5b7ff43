package referral

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

// GET /v1/referrals
func (h *Handler) List(c *gin.Context) {
	userID := middleware.MustIdentity(c).UserID

	rows, err := h.svc.ListReferrals(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	summary, err := h.svc.GetSummary(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "summary": summary})
}
