package ads

import (
	"fogsly/pkg/db"
	"fogsly/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("ads.service",
	db.ProvideModels(&Ad{}, &AdQuestion{}, &UserAdInteraction{}, &UserAdStats{}, &UserDailyActivity{}),
	fx.Provide(NewService),
)

var HTTP = fx.Module("ads.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

var Worker = fx.Module("ads.worker",
	fx.Provide(NewTaskHandler),
	fx.Invoke(registerTaskHandlers),
)

func registerRoutes(r *httpapi.Router, h *Handler) {
	a := r.Authed.Group("/ads")
	a.GET("", h.List)
	a.GET("/me/stats", h.Stats)
	a.GET("/:id", h.Get)
	a.POST("/:id/watch", h.Watch)
	a.GET("/:id/interaction", h.Interaction)

	admin := r.Admin.Group("/ads")
	admin.GET("", h.AdminList)
	admin.POST("", h.Create)
	admin.GET("/:id", h.AdminGet)
	admin.PATCH("/:id", h.Update)
	admin.PUT("/:id/active", h.SetActive)
	admin.POST("/:id/media", h.UploadMedia)
}
