package engine

import (
	"context"
	"fmt"
	"strconv"

	"formlink-backend/internal/metadata"
)

// Status classifies the outcome of one connection evaluation.
type Status string

const (
	// StatusOk means the target receives the computed value.
	StatusOk Status = "ok"
	// StatusSkipped means the target is left untouched.
	StatusSkipped Status = "skipped"
	// StatusFailed means the evaluation errored and the target receives
	// the degraded value (0 by policy).
	StatusFailed Status = "failed"
)

// Result is the structured outcome of evaluating one connection. Failures
// never propagate as Go errors: callers apply Ok and Failed values and drop
// Skipped ones, so a broken rule degrades to missing automation rather than
// a user-visible fault.
type Result struct {
	Status Status `json:"status"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func resultOk(value string) Result {
	return Result{Status: StatusOk, Value: value}
}

func resultSkipped(reason string) Result {
	return Result{Status: StatusSkipped, Reason: reason}
}

func resultFailed(value, reason string) Result {
	return Result{Status: StatusFailed, Value: value, Reason: reason}
}

// Evaluator computes target values for connections. Safe for concurrent use.
type Evaluator struct {
	formulas *FormulaEngine
	lookup   *LookupClient // nil disables show_related
}

func NewEvaluator(formulas *FormulaEngine, lookup *LookupClient) *Evaluator {
	return &Evaluator{formulas: formulas, lookup: lookup}
}

// Evaluate computes the new target value for conn given the value that
// triggered it and a snapshot of all current form values. The snapshot is
// read, never written.
func (e *Evaluator) Evaluate(ctx context.Context, conn *metadata.Connection, sourceValue string, snapshot map[string]string) Result {
	switch {
	case conn.Operation == metadata.OpCopy:
		// Unconditional, empty string included.
		return resultOk(sourceValue)

	case conn.Operation.IsArithmetic():
		return e.evaluateArithmetic(conn, sourceValue, snapshot)

	case conn.Operation == metadata.OpCustomFormula:
		return e.evaluateFormula(conn, sourceValue, snapshot)

	case conn.Operation == metadata.OpShowRelated:
		return e.evaluateLookup(ctx, conn, sourceValue)
	}

	// Unknown kinds are rejected at load time; this is unreachable for
	// registry-delivered connections.
	return resultSkipped(fmt.Sprintf("unknown operation %q", conn.Operation))
}

func (e *Evaluator) evaluateArithmetic(conn *metadata.Connection, sourceValue string, snapshot map[string]string) Result {
	source := parseNumber(sourceValue)
	other := e.resolveOperand(conn, snapshot)

	// reverse swaps operand order: other ∘ source instead of source ∘ other
	a, b := source, other
	if conn.ParamBool("reverse") {
		a, b = other, source
	}

	var value float64
	switch conn.Operation {
	case metadata.OpAdd:
		value = a + b
	case metadata.OpSubtract:
		value = a - b
	case metadata.OpMultiply:
		value = a * b
	case metadata.OpDivide:
		if b == 0 {
			// Division by zero is defined as 0 by policy, not an error.
			value = 0
		} else {
			value = a / b
		}
	}

	return resultOk(formatNumber(value, conn.ParamInt("decimals")))
}

// resolveOperand finds the second operand: another field's current value or
// a fixed constant. Absent or non-numeric operands default to 0.
func (e *Evaluator) resolveOperand(conn *metadata.Connection, snapshot map[string]string) float64 {
	if otherField := conn.ParamString("other_field"); otherField != "" {
		return parseNumber(snapshot[otherField])
	}
	if constant, ok := conn.ParamFloat("constant"); ok {
		return constant
	}
	return 0
}

func (e *Evaluator) evaluateFormula(conn *metadata.Connection, sourceValue string, snapshot map[string]string) Result {
	formula := conn.ParamString("formula")
	if formula == "" {
		return resultSkipped("empty formula")
	}

	env := FormulaEnv(snapshot)
	env["source"] = sourceValue
	env["result"] = snapshot[conn.Target.FieldName]

	value, err := e.formulas.Evaluate(formula, env)
	if err != nil {
		// Errors are logged by the formula engine; the target degrades to 0.
		return resultFailed("0", err.Error())
	}
	if value == nil {
		// A formula that resolves to nothing (e.g. an undefined field
		// reference) degrades to 0 the same way an error does.
		return resultFailed("0", "formula produced no value")
	}

	out := stringifyValue(value)
	if decimals := conn.ParamInt("decimals"); decimals >= 0 {
		if f, ok := toFloat64(value); ok {
			out = formatNumber(f, decimals)
		}
	}
	return resultOk(out)
}

func (e *Evaluator) evaluateLookup(ctx context.Context, conn *metadata.Connection, sourceValue string) Result {
	if e.lookup == nil {
		return resultSkipped("related-value lookup not configured")
	}

	value, ok := e.lookup.Lookup(ctx, conn.Source.Key(), sourceValue, conn.Target.Key())
	if !ok {
		return resultSkipped("no related value available")
	}
	return resultOk(value)
}

// parseNumber parses a form value as a float, defaulting to 0.
func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// formatNumber renders a float for a form field. decimals < 0 means the
// shortest exact representation; otherwise fixed decimal places.
func formatNumber(v float64, decimals int) string {
	if decimals < 0 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// stringifyValue renders an arbitrary formula result as a form value.
func stringifyValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// toFloat64 converts numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
