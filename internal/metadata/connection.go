package metadata

import "strconv"

// OperationKind selects the computation a connection performs.
type OperationKind string

const (
	OpShowRelated   OperationKind = "show_related"
	OpCopy          OperationKind = "copy"
	OpAdd           OperationKind = "add"
	OpSubtract      OperationKind = "subtract"
	OpMultiply      OperationKind = "multiply"
	OpDivide        OperationKind = "divide"
	OpCustomFormula OperationKind = "custom_formula"
)

// Valid reports whether the kind is a member of the closed enumeration.
func (k OperationKind) Valid() bool {
	switch k {
	case OpShowRelated, OpCopy, OpAdd, OpSubtract, OpMultiply, OpDivide, OpCustomFormula:
		return true
	}
	return false
}

// IsArithmetic reports whether the kind is one of the four numeric operations.
func (k OperationKind) IsArithmetic() bool {
	switch k {
	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		return true
	}
	return false
}

// Connection is a directed, single-hop rule: when the source field changes,
// recompute the target field. Read-only at runtime. The required parameter
// keys depend on Operation:
//
//	add/subtract/multiply/divide: other_field or constant, optional reverse,
//	                              optional decimals
//	custom_formula:               formula
//	show_related:                 none (keyed by source/target refs)
type Connection struct {
	ID         string         `json:"id"`
	Source     FieldRef       `json:"source"`
	Target     FieldRef       `json:"target"`
	Operation  OperationKind  `json:"operation"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ParamString returns a string parameter, or "" when absent or not a string.
func (c *Connection) ParamString(key string) string {
	s, _ := c.Parameters[key].(string)
	return s
}

// ParamBool returns a bool parameter. Accepts bool or the strings "true"/"false".
func (c *Connection) ParamBool(key string) bool {
	switch v := c.Parameters[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// ParamFloat returns a numeric parameter and whether it was present and numeric.
func (c *Connection) ParamFloat(key string) (float64, bool) {
	switch v := c.Parameters[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// ParamInt returns an integer parameter, or -1 when absent or not numeric.
func (c *Connection) ParamInt(key string) int {
	f, ok := c.ParamFloat(key)
	if !ok {
		return -1
	}
	return int(f)
}
