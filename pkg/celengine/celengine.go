package celengine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	envCache     = sync.Map{}
	programCache = sync.Map{}
)

// GetOrBuildEnv returns an environment declaring one variable per attribute, cached by
// the attribute names and their CEL types.
func GetOrBuildEnv(attrs map[string]any) (*cel.Env, error) {
	key := signature(attrs)
	if v, ok := envCache.Load(key); ok {
		return v.(*cel.Env), nil
	}

	env, err := BuildCelEnvFromAttributes(attrs)
	if err != nil {
		return nil, err
	}

	actual, _ := envCache.LoadOrStore(key, env)
	return actual.(*cel.Env), nil
}

func celType(val any) *cel.Type {
	switch val.(type) {
	case string:
		return cel.StringType
	case int, int32, int64:
		return cel.IntType
	case float32, float64:
		return cel.DoubleType
	case bool:
		return cel.BoolType
	case []any:
		return cel.ListType(cel.DynType)
	case map[string]any:
		return cel.MapType(cel.StringType, cel.DynType)
	default:
		return cel.DynType
	}
}

func signature(attrs map[string]any) string {
	parts := make([]string, 0, len(attrs))
	for k, v := range attrs {
		parts = append(parts, k+":"+celType(v).String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func BuildCelEnvFromAttributes(attrs map[string]any) (*cel.Env, error) {
	variables := make([]cel.EnvOption, 0, len(attrs))
	for key, val := range attrs {
		variables = append(variables, cel.Variable(key, celType(val)))
	}

	return cel.NewEnv(variables...)
}

func ValidateExpression(env *cel.Env, expr string) error {
	_, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

func program(env *cel.Env, expr string) (cel.Program, error) {
	key := fmt.Sprintf("%p|%s", env, expr)
	if v, ok := programCache.Load(key); ok {
		return v.(cel.Program), nil
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	programCache.Store(key, prg)
	return prg, nil
}

func Evaluate(env *cel.Env, expr string, attrs map[string]any) (bool, error) {
	val, err := EvaluateDynamic(env, expr, attrs)
	if err != nil {
		return false, err
	}

	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool from expression, got %T (%v)", val, val)
	}

	return b, nil
}

func EvaluateDynamic(env *cel.Env, expr string, attrs map[string]any) (any, error) {
	prg, err := program(env, expr)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.Eval(attrs)
	if err != nil {
		return nil, err
	}

	return out.Value(), nil
}

// EvaluateNumber evaluates expr and coerces an int, uint or double result to float64.
func EvaluateNumber(env *cel.Env, expr string, attrs map[string]any) (float64, error) {
	val, err := EvaluateDynamic(env, expr, attrs)
	if err != nil {
		return 0, err
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected number from expression, got %T (%v)", val, val)
	}
}
