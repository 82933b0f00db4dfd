package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// Vars are the inputs a report rule can reference.
type Vars struct {
	Tipo      string
	MessageID string
	Datos     map[string]interface{}
}

func (v Vars) activation() map[string]interface{} {
	datos := v.Datos
	if datos == nil {
		datos = map[string]interface{}{}
	}
	return map[string]interface{}{
		"tipo":       v.Tipo,
		"message_id": v.MessageID,
		"datos":      datos,
	}
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("tipo", cel.StringType),
		cel.Variable("message_id", cel.StringType),
		cel.Variable("datos", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	if err := e.ValidateFilterExpression(expression); err != nil {
		return nil, err
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

func (e *Evaluator) EvaluateFilter(ctx context.Context, expression string, vars Vars) (bool, error) {
	program, err := e.CompileExpression(expression)
	if err != nil {
		return false, err
	}
	return evalBool(ctx, program, vars)
}

func evalBool(ctx context.Context, program cel.Program, vars Vars) (bool, error) {
	result, _, err := program.ContextEval(ctx, vars.activation())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
