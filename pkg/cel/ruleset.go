package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

type rule struct {
	expression string
	program    cel.Program
}

// RuleSet is a list of boolean expressions compiled once at startup. A
// report is accepted only when every rule evaluates to true.
type RuleSet struct {
	rules []rule
}

func NewRuleSet(expressions []string) (*RuleSet, error) {
	eval, err := NewEvaluator()
	if err != nil {
		return nil, err
	}

	rs := &RuleSet{rules: make([]rule, 0, len(expressions))}
	for _, expr := range expressions {
		program, err := eval.CompileExpression(expr)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", expr, err)
		}
		rs.rules = append(rs.rules, rule{expression: expr, program: program})
	}
	return rs, nil
}

func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Check returns the first rule that rejected vars. A rule that errors at
// evaluation time, for example on a missing key, counts as a rejection.
func (rs *RuleSet) Check(ctx context.Context, vars Vars) (rejectedBy string, ok bool) {
	if rs == nil {
		return "", true
	}
	for _, r := range rs.rules {
		passed, err := evalBool(ctx, r.program, vars)
		if err != nil || !passed {
			return r.expression, false
		}
	}
	return "", true
}
