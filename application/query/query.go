// Package query evaluates expr-lang expressions against an admission request.
//
// Expressions see four variables:
//
//	object     the object under admission (nil when absent)
//	oldObject  the previous object for UPDATE and DELETE (nil when absent)
//	request    the whole admission request
//	settings   the policy settings object (nil when absent)
//
// Every variable is a fresh copy decoded from the request, so expressions
// cannot alter what the policy sees.
package query

import (
	stdErrors "errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// Limits applied to every expression.
const (
	MaxExpressionLength = 1000
	maxASTNodes         = 200
)

// Errors returned by Compile and Program.Matches.
var (
	ErrExpressionTooLong = stdErrors.New("expression too long")
	ErrNotBoolean        = stdErrors.New("expression did not return a boolean")
)

// Program is a compiled expression, reusable across requests.
type Program struct {
	program *vm.Program
	source  string
}

// Compile checks and compiles expression. Unknown variables are compile errors.
func Compile(expression string) (*Program, error) {
	if len(expression) > MaxExpressionLength {
		return nil, fmt.Errorf("%w (max %d chars): %d chars", ErrExpressionTooLong, MaxExpressionLength, len(expression))
	}

	program, err := expr.Compile(expression,
		expr.Env(map[string]any{
			"object":    map[string]any{},
			"oldObject": map[string]any{},
			"request":   map[string]any{},
			"settings":  map[string]any{},
		}),
		expr.MaxNodes(maxASTNodes),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return &Program{program: program, source: expression}, nil
}

// String returns the expression source.
func (p *Program) String() string {
	return p.source
}

// Run evaluates the program against req.
func (p *Program) Run(req *entities.ValidationRequest) (any, error) {
	env, err := NewEnv(req)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(p.program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", p.source, err)
	}
	return out, nil
}

// Matches evaluates the program and requires a boolean result.
func (p *Program) Matches(req *entities.ValidationRequest) (bool, error) {
	out, err := p.Run(req)
	if err != nil {
		return false, err
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T", ErrNotBoolean, p.source, out)
	}
	return matched, nil
}

// Search compiles and evaluates expression against req.
func Search(req *entities.ValidationRequest, expression string) (any, error) {
	p, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return p.Run(req)
}

// Matches compiles and evaluates a boolean expression against req.
func Matches(req *entities.ValidationRequest, expression string) (bool, error) {
	p, err := Compile(expression)
	if err != nil {
		return false, err
	}
	return p.Matches(req)
}

// NewEnv builds the evaluation environment of req.
func NewEnv(req *entities.ValidationRequest) (map[string]any, error) {
	if req == nil {
		return nil, stdErrors.New("nil validation request")
	}

	object, err := req.Request.ObjectMap()
	if err != nil {
		return nil, err
	}
	oldObject, err := req.Request.OldObjectMap()
	if err != nil {
		return nil, err
	}

	raw, err := wireformat.Encode(req.Request)
	if err != nil {
		return nil, err
	}
	request, err := wireformat.Decode[map[string]any](raw)
	if err != nil {
		return nil, err
	}

	var settings map[string]any
	if len(req.Settings) > 0 {
		if err := req.DecodeSettings(&settings); err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"object":    object,
		"oldObject": oldObject,
		"request":   request,
		"settings":  settings,
	}, nil
}
