package settings

import (
	"fogsly/pkg/db"
	"fogsly/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("settings.service",
	db.ProvideModels(&FogCoinSettings{}, &FogCoinSettingsHistory{}),
	fx.Provide(
		NewService,
		func(s *Service) Reader { return s },
	),
)

var HTTP = fx.Module("settings.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *httpapi.Router, h *Handler) {
	r.Public.GET("/settings/fog-coin", h.Get)
	r.Admin.PUT("/settings/fog-coin", h.Update)
	r.Admin.GET("/settings/fog-coin/history", h.History)
}
