package profile

import (
	"context"
	"net/http"

	"fogsly/pkg/errutil"
	"fogsly/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const maxImageSize = 5 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GET /v1/profile
func (h *Handler) Get(c *gin.Context) {
	out, err := h.svc.GetProfile(c.Request.Context(), middleware.MustIdentity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// PATCH /v1/profile
func (h *Handler) Update(c *gin.Context) {
	var req UpdateParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.UpdateProfile(c.Request.Context(), middleware.MustIdentity(c).UserID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /v1/profile/avatar
func (h *Handler) UploadAvatar(c *gin.Context) {
	h.upload(c, h.svc.UploadAvatar)
}

// POST /v1/profile/cover
func (h *Handler) UploadCover(c *gin.Context) {
	h.upload(c, h.svc.UploadCover)
}

func (h *Handler) upload(c *gin.Context, fn func(ctx context.Context, p ImageParams) (*UserProfile, error)) {
	file, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(errutil.BadRequest("file is required", err))
		return
	}
	if file.Size > maxImageSize {
		_ = c.Error(errutil.BadRequest("image too large", nil))
		return
	}

	f, err := file.Open()
	if err != nil {
		_ = c.Error(errutil.BadRequest("failed to read file", err))
		return
	}
	defer f.Close()

	out, err := fn(c.Request.Context(), ImageParams{
		UserID:      middleware.MustIdentity(c).UserID,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Body:        f,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
