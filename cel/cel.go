// Package cel selects coverages by name with a CEL predicate, e.g. `name.startsWith("dem_")`.
package cel

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
)

// Filter contains the CEL expression & the cel program used to evaluate it vs. a coverage name.
// It implements replicate.NameFilter.
type Filter struct {
	Expression string
	program    cel.Program
}

// NewFilter compiles expression, a boolean CEL expression over the string variable "name".
func NewFilter(expression string) (*Filter, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression can't be empty string")
	}

	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling CEL expression: %w", issues.Err())
	}
	p, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating Program: %w", err)
	}
	return &Filter{
		Expression: expression,
		program:    p,
	}, nil
}

// Match evaluates the expression for the coverage name.
func (f *Filter) Match(name string) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"name": name,
	})
	if err != nil {
		return false, fmt.Errorf("error evaluating CEL expression %q: %w", f.Expression, err)
	}
	nv, err := out.ConvertToNative(reflect.TypeOf(true))
	if err != nil {
		return false, fmt.Errorf("CEL expression %q is not a predicate: %w", f.Expression, err)
	}
	return nv.(bool), nil
}
