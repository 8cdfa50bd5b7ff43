package auth

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

// POST /v1/auth/signup
func (h *Handler) SignUp(c *gin.Context) {
	var req SignUpParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// POST /v1/auth/signin
func (h *Handler) SignIn(c *gin.Context) {
	var req SignInParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.SignIn(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /v1/auth/signout
func (h *Handler) SignOut(c *gin.Context) {
	if err := h.svc.SignOut(c.Request.Context(), middleware.MustIdentity(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/auth/session
func (h *Handler) Session(c *gin.Context) {
	out, err := h.svc.Session(c.Request.Context(), middleware.MustIdentity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// PUT /v1/admin/users/:id/role
func (h *Handler) SetRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.SetRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
