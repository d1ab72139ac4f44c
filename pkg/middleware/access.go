package middleware

import (
	"creator-ledger/pkg/config"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

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
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

var defaultPolicies = [][]string{
	{"admin", "/admin/*", ".*"},
	{"support", "/admin/*", "GET"},
}

// NewEnforcer builds the admin RBAC enforcer. ACCESS_CONTROL.MODEL overrides
// the built-in model and ACCESS_CONTROL.POLICY points at a CSV policy file;
// without one the default admin/support policies are loaded.
func NewEnforcer(cfg *config.Config) (*casbin.Enforcer, error) {
	text := defaultModel
	if cfg != nil && cfg.AccessControl.Model != "" {
		text = cfg.AccessControl.Model
	}

	m, err := model.NewModelFromString(text)
	if err != nil {
		return nil, err
	}

	if cfg != nil && cfg.AccessControl.Policy != "" {
		return casbin.NewEnforcer(m, cfg.AccessControl.Policy)
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

// Authorize requires an admin identity whose role may perform the request.
func Authorize(e *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if AdminID(c) == "" {
			Abort(c, ErrMissingAdmin)
			return
		}

		ok, err := e.Enforce(Role(c), c.Request.URL.Path, c.Request.Method)
		if err != nil {
			zap.L().Error("casbin enforce failed", zap.Error(err))
			Abort(c, ErrForbidden)
			return
		}
		if !ok {
			Abort(c, ErrForbidden)
			return
		}
		c.Next()
	}
}
