package wallet

import (
	"fogsly/pkg/db"
	"fogsly/pkg/httpapi"
	"fogsly/services/earnings"

	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	db.ProvideModels(&UserWallet{}, &WalletBalance{}, &WalletTransfer{}),
	fx.Provide(
		NewService,
		func(s *Service) earnings.WalletCreditor { return s },
	),
)

var HTTP = fx.Module("wallet.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

// Worker runs the stale transfer sweep.
var Worker = fx.Module("wallet.worker",
	fx.Provide(NewTaskHandler, NewScheduler),
	fx.Invoke(registerTaskHandlers, StartScheduler),
)

func registerRoutes(r *httpapi.Router, h *Handler) {
	w := r.Authed.Group("/wallet")
	w.GET("", h.Get)
	w.GET("/balance", h.Balance)
	w.GET("/validate/:address", h.Validate)
	w.POST("/transfers", h.Transfer)
	w.GET("/transfers", h.List)
	w.GET("/transfers/:id", h.GetTransfer)
	w.POST("/transfers/:id/cancel", h.Cancel)
}
