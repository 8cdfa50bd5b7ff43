package accesscontrol

import (
	"fogsly/pkg/config"
	"fogsly/pkg/errutil"
	"fogsly/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("accesscontrol", fx.Provide(NewEnforcer))

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

var defaultPolicies = [][]string{
	{middleware.RoleAdmin, "/v1/admin/*", "*"},
	{middleware.RoleAuditor, "/v1/admin/*", "GET"},
}

// NewEnforcer loads ACCESS_CONTROL.MODEL/POLICY files when configured and falls
// back to the built-in role model otherwise.
func NewEnforcer(cfg *config.Config) (*casbin.Enforcer, error) {
	if cfg.AccessControl.Model != "" && cfg.AccessControl.Policy != "" {
		return casbin.NewEnforcer(cfg.AccessControl.Model, cfg.AccessControl.Policy)
	}
	return NewDefaultEnforcer()
}

func NewDefaultEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, err
	}

	return e, nil
}

// Authorize enforces (role, route pattern, method) against the policy. It guards the
// admin route group.
func Authorize(e *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := middleware.IdentityFrom(c)
		if !ok {
			_ = c.Error(errutil.Unauthorized("authentication required", nil))
			c.Abort()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		allowed, err := e.Enforce(id.Role, path, c.Request.Method)
		if err != nil {
			zap.L().Error("access control evaluation failed", zap.Error(err))
			_ = c.Error(errutil.Internal("access control evaluation failed", err))
			c.Abort()
			return
		}
		if !allowed {
			_ = c.Error(errutil.Forbidden("insufficient permissions", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
