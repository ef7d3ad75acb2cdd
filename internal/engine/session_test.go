package engine

import (
	"context"
	"testing"

	"formlink-backend/internal/metadata"
)

func chainConn(id, form, source, target string, op metadata.OperationKind, params map[string]any) *metadata.Connection {
	return &metadata.Connection{
		ID:         id,
		Source:     metadata.FieldRef{FormID: form, FieldName: source},
		Target:     metadata.FieldRef{FormID: form, FieldName: target},
		Operation:  op,
		Parameters: params,
	}
}

func newTestRegistry(fields []*metadata.FieldDescriptor, conns []*metadata.Connection) *metadata.Registry {
	reg := metadata.NewRegistry()
	reg.Load(fields, conns)
	return reg
}

func TestSession_CopyPropagates(t *testing.T) {
	reg := newTestRegistry(nil, []*metadata.Connection{
		chainConn("c1", "payroll", "a", "b", metadata.OpCopy, nil),
	})
	s := NewSession(reg, newTestEvaluator(), "payroll", nil, 0)

	changes := s.Apply(context.Background(), "a", "hello")
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if s.Get("b") != "hello" {
		t.Fatalf("expected b=hello, got %q", s.Get("b"))
	}

	// Clearing the source clears the target too.
	s.Apply(context.Background(), "a", "")
	if s.Get("b") != "" {
		t.Fatalf("expected b cleared, got %q", s.Get("b"))
	}
}

func TestSession_Chaining(t *testing.T) {
	// A→B→C via two copy connections; no direct A→C rule needed.
	reg := newTestRegistry(nil, []*metadata.Connection{
		chainConn("c1", "payroll", "a", "b", metadata.OpCopy, nil),
		chainConn("c2", "payroll", "b", "c", metadata.OpCopy, nil),
	})
	s := NewSession(reg, newTestEvaluator(), "payroll", nil, 0)

	changes := s.Apply(context.Background(), "a", "42")
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if s.Get("b") != "42" || s.Get("c") != "42" {
		t.Fatalf("expected b=c=42, got b=%q c=%q", s.Get("b"), s.Get("c"))
	}
}

func TestSession_PayrollScenario(t *testing.T) {
	reg := newTestRegistry(nil, []*metadata.Connection{
		chainConn("c1", "payroll", "dailyWage", "basicAmount", metadata.OpMultiply,
			map[string]any{"other_field": "daysWorked", "decimals": float64(2)}),
	})
	s := NewSession(reg, newTestEvaluator(), "payroll",
		map[string]string{"daysWorked": "22"}, 0)

	s.Apply(context.Background(), "dailyWage", "500")
	if got := s.Get("basicAmount"); got != "11000.00" {
		t.Fatalf("expected basicAmount=11000.00, got %q", got)
	}
}

func TestSession_FanOutInRegistrationOrder(t *testing.T) {
	reg := newTestRegistry(nil, []*metadata.Connection{
		chainConn("first", "payroll", "a", "b", metadata.OpCopy, nil),
		chainConn("second", "payroll", "a", "c", metadata.OpCopy, nil),
	})
	s := NewSession(reg, newTestEvaluator(), "payroll", nil, 0)

	changes := s.Apply(context.Background(), "a", "x")
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].ConnectionID != "first" || changes[1].ConnectionID != "second" {
		t.Fatalf("expected registration order, got %s then %s",
			changes[0].ConnectionID, changes[1].ConnectionID)
	}
}

func TestSession_SharedTargetLastWins(t *testing.T) {
	reg := newTestRegistry(nil, []*metadata.Connection{
		chainConn("c1", "payroll", "a", "total", metadata.OpCopy, nil),
		chainConn("c2", "payroll", "b", "total", metadata.OpCopy, nil),
	})
	s := NewSession(reg, newTestEvaluator(), "payroll", map[string]string{"a": "1"}, 0)

	s.Apply(context.Background(), "b", "2")
	if s.Get("total") != "2" {
		t.Fatalf("expected last write to win, got %q", s.Get("total"))
	}
}

func TestSession_TriggerBudgetStopsCycles(t *testing.T) {
	// Load-time validation rejects cycles; load one directly to prove the
	// runtime budget still terminates propagation.
	reg := newTestRegistry(nil, []*metadata.Connection{
		chainConn("c1", "payroll", "a", "b", metadata.OpCopy, nil),
		chainConn("c2", "payroll", "b", "a", metadata.OpCopy, nil),
	})
	s := NewSession(reg, newTestEvaluator(), "payroll", nil, 10)

	changes := s.Apply(context.Background(), "a", "x")
	if len(changes) != 10 {
		t.Fatalf("expected exactly budget-many evaluations, got %d", len(changes))
	}
}

func TestSession_CrossFormTargetSkipped(t *testing.T) {
	reg := newTestRegistry(nil, []*metadata.Connection{
		{
			ID:        "c1",
			Source:    metadata.FieldRef{FormID: "payroll", FieldName: "a"},
			Target:    metadata.FieldRef{FormID: "attendance", FieldName: "b"},
			Operation: metadata.OpCopy,
		},
	})
	s := NewSession(reg, newTestEvaluator(), "payroll", nil, 0)

	changes := s.Apply(context.Background(), "a", "x")
	if len(changes) != 1 || changes[0].Status != StatusSkipped {
		t.Fatalf("expected skipped cross-form change, got %+v", changes)
	}
	if s.Get("b") != "" {
		t.Fatalf("expected b untouched, got %q", s.Get("b"))
	}
}

func TestSession_PrimeFiresNonEmptyFields(t *testing.T) {
	fields := []*metadata.FieldDescriptor{
		{FormID: "payroll", FieldName: "dailyWage"},
		{FormID: "payroll", FieldName: "daysWorked"},
		{FormID: "payroll", FieldName: "note"},
	}
	reg := newTestRegistry(fields, []*metadata.Connection{
		chainConn("c1", "payroll", "dailyWage", "basicAmount", metadata.OpMultiply,
			map[string]any{"other_field": "daysWorked", "decimals": float64(2)}),
		chainConn("c2", "payroll", "note", "noteCopy", metadata.OpCopy, nil),
	})

	s := NewSession(reg, newTestEvaluator(), "payroll",
		map[string]string{"dailyWage": "500", "daysWorked": "22"}, 0)
	changes := s.Prime(context.Background())

	// note is empty, so only the wage connection fires.
	if len(changes) != 1 {
		t.Fatalf("expected 1 change from prime, got %d", len(changes))
	}
	if s.Get("basicAmount") != "11000.00" {
		t.Fatalf("expected primed basicAmount=11000.00, got %q", s.Get("basicAmount"))
	}
	if s.Get("noteCopy") != "" {
		t.Fatalf("expected noteCopy untouched, got %q", s.Get("noteCopy"))
	}
}

func TestSession_ValuesReturnsCopy(t *testing.T) {
	s := NewSession(metadata.NewRegistry(), newTestEvaluator(), "payroll",
		map[string]string{"a": "1"}, 0)

	values := s.Values()
	values["a"] = "mutated"
	if s.Get("a") != "1" {
		t.Fatalf("expected session values isolated from returned copy, got %q", s.Get("a"))
	}
}
