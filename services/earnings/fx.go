package earnings

import (
	"fogsly/pkg/db"
	"fogsly/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("earnings.service",
	db.ProvideModels(&UserEarning{}, &EarningEntry{}, &WithdrawalRequest{}),
	fx.Provide(NewService),
)

var HTTP = fx.Module("earnings.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *httpapi.Router, h *Handler) {
	r.Public.GET("/leaderboard", h.Leaderboard)

	earnings := r.Authed.Group("/earnings")
	earnings.GET("", h.Get)
	earnings.GET("/entries", h.Entries)
	earnings.GET("/verify", h.Verify)
	earnings.POST("/transfer-to-wallet", h.TransferToWallet)
	earnings.POST("/withdrawals", h.RequestWithdrawal)
	earnings.GET("/withdrawals", h.MyWithdrawals)

	r.Admin.GET("/withdrawals", h.AllWithdrawals)
	r.Admin.POST("/withdrawals/:id/resolve", h.ResolveWithdrawal)
}
