package referral

import (
	"fogsly/pkg/db"
	"fogsly/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	db.ProvideModels(&Referral{}, &Reward{}),
	fx.Provide(NewService),
)

var HTTP = fx.Module("referral.http",
	fx.Provide(NewHandler),
	fx.Invoke(func(r *httpapi.Router, h *Handler) {
		r.Authed.GET("/referrals", h.List)
	}),
)

var Worker = fx.Module("referral.worker",
	fx.Provide(NewTaskHandler),
	fx.Invoke(registerTaskHandlers),
)
