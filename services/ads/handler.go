package ads

import (
	"net/http"

	"fogsly/pkg/db/pagination"
	"fogsly/pkg/errutil"
	"fogsly/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const maxMediaSize = 200 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GET /v1/ads
func (h *Handler) List(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	rows, info, err := h.svc.ListAds(c.Request.Context(), AdFilter{ActiveOnly: true, Pagination: page}, false)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}

// GET /v1/ads/:id
func (h *Handler) Get(c *gin.Context) {
	ad, err := h.svc.GetAd(c.Request.Context(), c.Param("id"), false)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// POST /v1/ads/:id/watch
func (h *Handler) Watch(c *gin.Context) {
	var req WatchParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.UserID = middleware.MustIdentity(c).UserID
	req.AdID = c.Param("id")

	out, err := h.svc.WatchAd(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GET /v1/ads/:id/interaction
func (h *Handler) Interaction(c *gin.Context) {
	out, err := h.svc.GetInteraction(c.Request.Context(), middleware.MustIdentity(c).UserID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /v1/ads/me/stats
func (h *Handler) Stats(c *gin.Context) {
	userID := middleware.MustIdentity(c).UserID
	stats, err := h.svc.GetStats(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	today, err := h.svc.GetDailyActivity(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "today": today})
}

// GET /v1/admin/ads
func (h *Handler) AdminList(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	rows, info, err := h.svc.ListAds(c.Request.Context(), AdFilter{Pagination: page}, true)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}

// GET /v1/admin/ads/:id
func (h *Handler) AdminGet(c *gin.Context) {
	ad, err := h.svc.GetAd(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// POST /v1/admin/ads
func (h *Handler) Create(c *gin.Context) {
	var req CreateAdParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.CreatedBy = middleware.MustIdentity(c).UserID

	ad, err := h.svc.CreateAd(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, ad)
}

// PATCH /v1/admin/ads/:id
func (h *Handler) Update(c *gin.Context) {
	var req UpdateAdParams
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	ad, err := h.svc.UpdateAd(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// PUT /v1/admin/ads/:id/active
func (h *Handler) SetActive(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	ad, err := h.svc.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// POST /v1/admin/ads/:id/media?kind=video|preview
func (h *Handler) UploadMedia(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(errutil.BadRequest("file is required", err))
		return
	}
	if file.Size > maxMediaSize {
		_ = c.Error(errutil.BadRequest("file too large", nil))
		return
	}

	f, err := file.Open()
	if err != nil {
		_ = c.Error(errutil.BadRequest("failed to read file", err))
		return
	}
	defer f.Close()

	ad, err := h.svc.UploadMedia(c.Request.Context(), MediaParams{
		AdID:        c.Param("id"),
		Kind:        c.DefaultQuery("kind", "video"),
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Body:        f,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ad)
}
