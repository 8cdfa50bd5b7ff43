package ranking

import (
	"fogsly/pkg/db"
	"fogsly/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("ranking.service",
	db.ProvideModels(&SystemCounter{}, &UserRanking{}),
	fx.Provide(NewService),
)

var HTTP = fx.Module("ranking.http",
	fx.Provide(NewHandler),
	fx.Invoke(func(r *httpapi.Router, h *Handler) {
		r.Authed.GET("/rank", h.MyRank)
	}),
)
