package payment

import (
	"fogsly/pkg/db"
	"fogsly/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	db.ProvideModels(&BankAccount{}, &PaymentRequest{}),
	fx.Provide(NewService),
)

var HTTP = fx.Module("payment.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *httpapi.Router, h *Handler) {
	r.Authed.GET("/bank-accounts", h.BankAccounts)

	p := r.Authed.Group("/payments")
	p.POST("", h.Create)
	p.GET("", h.List)
	p.GET("/:id", h.Get)
	p.POST("/:id/evidence", h.AttachEvidence)

	r.Admin.GET("/bank-accounts", h.AllBankAccounts)
	r.Admin.POST("/bank-accounts", h.CreateBankAccount)
	r.Admin.PATCH("/bank-accounts/:id", h.UpdateBankAccount)

	admin := r.Admin.Group("/payments")
	admin.GET("", h.AdminList)
	admin.POST("/:id/processing", h.MarkProcessing)
	admin.POST("/:id/approve", h.Approve)
	admin.POST("/:id/reject", h.Reject)
}
