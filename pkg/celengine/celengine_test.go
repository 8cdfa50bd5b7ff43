package celengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluateNumber(t *testing.T) {
	attrs := map[string]any{"deposit_amount": 200.0, "total_rewarded": 0.0}
	env, err := GetOrBuildEnv(attrs)
	require.NoError(t, err)

	got, err := EvaluateNumber(env, "deposit_amount * 0.05", attrs)
	require.NoError(t, err)
	require.InDelta(t, 10.0, got, 1e-9)

	got, err = EvaluateNumber(env, "total_rewarded >= 50.0 ? 0.0 : deposit_amount * 0.1", attrs)
	require.NoError(t, err)
	require.InDelta(t, 20.0, got, 1e-9)
}

func TestEnvCacheIsKeyedByVariables(t *testing.T) {
	a, err := GetOrBuildEnv(map[string]any{"x": 1.0})
	require.NoError(t, err)
	b, err := GetOrBuildEnv(map[string]any{"y": "s"})
	require.NoError(t, err)
	require.NotSame(t, a, b)

	require.NoError(t, ValidateExpression(b, `y == "s"`))
	require.Error(t, ValidateExpression(a, `y == "s"`))
}

func TestEvaluateRequiresBool(t *testing.T) {
	attrs := map[string]any{"n": int64(3)}
	env, err := GetOrBuildEnv(attrs)
	require.NoError(t, err)

	ok, err := Evaluate(env, "n > 2", attrs)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = Evaluate(env, "n + 1", attrs)
	require.Error(t, err)
}
