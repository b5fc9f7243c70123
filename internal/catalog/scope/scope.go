// Package scope compiles view scopes, the CEL predicates that decide which
// raw documents of a collection belong to a view.
package scope

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"atelier/pkg/model"
)

// Compiler compiles view scopes.
type Compiler struct {
	env *cel.Env
}

// NewCompiler creates a compiler with `doc` bound to the raw document.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("CEL environment error: %w", err)
	}
	return &Compiler{env: env}, nil
}

// Scope is a compiled predicate. The zero value and nil match every document.
type Scope struct {
	prg  cel.Program
	expr string
}

// Compile joins the expression and the filters with && and compiles the result.
func (c *Compiler) Compile(expr string, where []model.Filter) (*Scope, error) {
	var parts []string
	if e := strings.TrimSpace(expr); e != "" {
		parts = append(parts, "("+e+")")
	}
	for _, f := range where {
		if !f.Validate() {
			return nil, fmt.Errorf("invalid filter on field %q with op %q", f.Field, f.Op)
		}
		e, err := filterToExpression(f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	if len(parts) == 0 {
		return &Scope{}, nil
	}

	full := strings.Join(parts, " && ")
	ast, issues := c.env.Compile(full)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	return &Scope{prg: prg, expr: full}, nil
}

// Match evaluates the scope against a document.
func (s *Scope) Match(doc model.Document) (bool, error) {
	if s == nil || s.prg == nil {
		return true, nil
	}

	out, _, err := s.prg.Eval(map[string]interface{}{
		"doc": map[string]interface{}(doc),
	})
	if err != nil {
		return false, err
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL result is not boolean: %T", out.Value())
	}
	return result, nil
}

// String returns the compiled expression.
func (s *Scope) String() string {
	if s == nil {
		return ""
	}
	return s.expr
}

// filterToExpression converts a filter to CEL. A missing top-level field
// never matches, except under != where it always does.
func filterToExpression(f model.Filter) (string, error) {
	valStr, err := formatValue(f.Value)
	if err != nil {
		return "", err
	}

	field := "doc"
	parts := strings.Split(f.Field, ".")
	for _, p := range parts {
		field += fmt.Sprintf("['%s']", escape(p))
	}

	var expr string
	switch f.Op {
	case model.OpEq:
		expr = fmt.Sprintf("%s == %s", field, valStr)
	case model.OpNe:
		expr = fmt.Sprintf("%s != %s", field, valStr)
	case model.OpGt:
		expr = fmt.Sprintf("%s > %s", field, valStr)
	case model.OpGte:
		expr = fmt.Sprintf("%s >= %s", field, valStr)
	case model.OpLt:
		expr = fmt.Sprintf("%s < %s", field, valStr)
	case model.OpLte:
		expr = fmt.Sprintf("%s <= %s", field, valStr)
	case model.OpIn:
		expr = fmt.Sprintf("%s in %s", field, valStr)
	case model.OpContains:
		expr = fmt.Sprintf("%s in %s", valStr, field)
	default:
		return "", fmt.Errorf("unsupported operator: %s", f.Op)
	}

	if len(parts) > 1 {
		return "(" + expr + ")", nil
	}
	present := fmt.Sprintf("'%s' in doc", escape(parts[0]))
	if f.Op == model.OpNe {
		return fmt.Sprintf("(!(%s) || %s)", present, expr), nil
	}
	return fmt.Sprintf("(%s && %s)", present, expr), nil
}

func escape(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

func formatValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("'%s'", escape(val)), nil
	case int:
		return fmt.Sprintf("%d", val), nil
	case int32:
		return fmt.Sprintf("%d", val), nil
	case int64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return fmt.Sprintf("%v", val), nil
	case float64:
		return fmt.Sprintf("%v", val), nil
	case bool:
		return fmt.Sprintf("%v", val), nil
	case []interface{}:
		var parts []string
		for _, item := range val {
			s, err := formatValue(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", ")), nil
	case []string:
		items := make([]interface{}, len(val))
		for i, s := range val {
			items[i] = s
		}
		return formatValue(items)
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
}
