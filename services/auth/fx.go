package auth

import (
	"fogsly/pkg/db"
	"fogsly/pkg/httpapi"
	"fogsly/pkg/middleware"

	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	db.ProvideModels(&User{}),
	fx.Provide(
		NewIssuer,
		NewRedisDenylist,
		NewService,
		func(s *Service) middleware.TokenVerifier { return s },
	),
)

var HTTP = fx.Module("auth.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *httpapi.Router, h *Handler) {
	r.Public.POST("/auth/signup", h.SignUp)
	r.Public.POST("/auth/signin", h.SignIn)
	r.Authed.POST("/auth/signout", h.SignOut)
	r.Authed.GET("/auth/session", h.Session)

	r.Admin.PUT("/users/:id/role", h.SetRole)
}
