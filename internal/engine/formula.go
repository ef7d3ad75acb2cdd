package engine

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FormulaEngine evaluates custom-formula connections with expr-lang.
// Formulas are data, never code: the expression runs against an explicit
// environment of form values plus the allowlisted helpers below, so the
// permitted operation set is auditable. Compiled programs are cached by
// expression string.
type FormulaEngine struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

func NewFormulaEngine() *FormulaEngine {
	return &FormulaEngine{cache: make(map[string]*vm.Program)}
}

// FormulaEnv builds the evaluation environment: every current form value by
// field name, plus the helper functions formulas may call. Callers add the
// reserved "source" and "result" keys before evaluating.
func FormulaEnv(snapshot map[string]string) map[string]any {
	env := make(map[string]any, len(snapshot)+10)
	for name, value := range snapshot {
		env[name] = value
	}

	env["int"] = func(s string) int {
		n, err := strconv.Atoi(s)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return 0
			}
			return int(f)
		}
		return n
	}
	env["float"] = func(s string) float64 {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	}
	env["abs"] = math.Abs
	env["min"] = math.Min
	env["max"] = math.Max
	env["round"] = math.Round
	env["now"] = func() time.Time { return time.Now() }
	env["date"] = func(s string) time.Time {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}
		}
		return t
	}

	return env
}

// Evaluate compiles (or reuses) the formula and runs it against env.
// Compile and run errors are logged and returned; callers coerce them to a
// zero result rather than surfacing them.
func (fe *FormulaEngine) Evaluate(formula string, env map[string]any) (any, error) {
	prog, err := fe.compile(formula)
	if err != nil {
		log.Printf("WARN: formula compile error: %v", err)
		return nil, err
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		log.Printf("WARN: formula evaluation error: %v", err)
		return nil, fmt.Errorf("evaluate formula: %w", err)
	}
	return result, nil
}

func (fe *FormulaEngine) compile(formula string) (*vm.Program, error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if prog, ok := fe.cache[formula]; ok {
		return prog, nil
	}

	// AllowUndefinedVariables keeps a typo in a field reference from being
	// a compile failure; the undefined name evaluates to nil and the run
	// error path coerces the result to 0.
	prog, err := expr.Compile(formula, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile formula: %w", err)
	}
	fe.cache[formula] = prog
	return prog, nil
}
