package accesscontrol

import (
	"testing"

	"fogsly/pkg/middleware"

	"github.com/stretchr/testify/require"
)

func TestDefaultEnforcer(t *testing.T) {
	e, err := NewDefaultEnforcer()
	require.NoError(t, err)

	cases := []struct {
		role   string
		path   string
		method string
		want   bool
	}{
		{middleware.RoleUser, "/v1/admin/settings/fog-coin", "PUT", false},
		{middleware.RoleAdmin, "/v1/admin/settings/fog-coin", "PUT", true},
		{middleware.RoleAdmin, "/v1/admin/payments/:id/approve", "POST", true},
		{middleware.RoleAuditor, "/v1/admin/payments", "GET", true},
		{middleware.RoleAuditor, "/v1/admin/payments/:id/approve", "POST", false},
	}

	for _, tc := range cases {
		ok, err := e.Enforce(tc.role, tc.path, tc.method)
		require.NoError(t, err)
		require.Equal(t, tc.want, ok, "%s %s %s", tc.role, tc.method, tc.path)
	}
}
