package profile

import (
	"fogsly/pkg/db"
	"fogsly/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("profile.service",
	db.ProvideModels(&UserProfile{}),
	fx.Provide(NewService),
)

var HTTP = fx.Module("profile.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *httpapi.Router, h *Handler) {
	p := r.Authed.Group("/profile")
	p.GET("", h.Get)
	p.PATCH("", h.Update)
	p.POST("/avatar", h.UploadAvatar)
	p.POST("/cover", h.UploadCover)
}
