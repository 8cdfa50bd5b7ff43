package httpapi

import (
	"fogsly/pkg/accesscontrol"
	"fogsly/pkg/config"
	"fogsly/pkg/health"
	"fogsly/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewEngine, NewRouter),
	fx.Invoke(registerHealthEndpoint),
)

// Router exposes the route groups services mount their handlers on.
type Router struct {
	// Public is /v1 without authentication.
	Public *gin.RouterGroup
	// Authed is /v1 behind a bearer token.
	Authed *gin.RouterGroup
	// Admin is /v1/admin behind a bearer token and the casbin policy.
	Admin *gin.RouterGroup
}

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Error())
	return r
}

type routerParams struct {
	fx.In
	Engine   *gin.Engine
	Verifier middleware.TokenVerifier
	Enforcer *casbin.Enforcer
}

func NewRouter(p routerParams) *Router {
	v1 := p.Engine.Group("/v1")
	authed := v1.Group("", middleware.RequireAuth(p.Verifier))
	admin := v1.Group("/admin", middleware.RequireAuth(p.Verifier), accesscontrol.Authorize(p.Enforcer))

	return &Router{
		Public: v1,
		Authed: authed,
		Admin:  admin,
	}
}

func registerHealthEndpoint(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
