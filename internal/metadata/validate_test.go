package metadata

import "testing"

func conn(id, form, source, target string, op OperationKind) *Connection {
	return &Connection{
		ID:        id,
		Source:    FieldRef{FormID: form, FieldName: source},
		Target:    FieldRef{FormID: form, FieldName: target},
		Operation: op,
	}
}

func TestValidateConnections_SkipsSelfReference(t *testing.T) {
	conns := []*Connection{
		conn("c1", "payroll", "dailyWage", "dailyWage", OpCopy),
		conn("c2", "payroll", "dailyWage", "basicAmount", OpCopy),
	}

	accepted := ValidateConnections(conns)
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted connection, got %d", len(accepted))
	}
	if accepted[0].ID != "c2" {
		t.Fatalf("expected c2 to survive, got %s", accepted[0].ID)
	}
}

func TestValidateConnections_SkipsUnknownOperation(t *testing.T) {
	conns := []*Connection{
		conn("c1", "payroll", "a", "b", OperationKind("frobnicate")),
		conn("c2", "payroll", "a", "c", OpAdd),
	}

	accepted := ValidateConnections(conns)
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted connection, got %d", len(accepted))
	}
	if accepted[0].ID != "c2" {
		t.Fatalf("expected c2 to survive, got %s", accepted[0].ID)
	}
}

func TestValidateConnections_RejectsCyclicForm(t *testing.T) {
	conns := []*Connection{
		conn("c1", "payroll", "a", "b", OpCopy),
		conn("c2", "payroll", "b", "a", OpCopy),
		conn("c3", "attendance", "checkIn", "hours", OpSubtract),
	}

	accepted := ValidateConnections(conns)
	if len(accepted) != 1 {
		t.Fatalf("expected only the acyclic form to survive, got %d connections", len(accepted))
	}
	if accepted[0].ID != "c3" {
		t.Fatalf("expected c3 to survive, got %s", accepted[0].ID)
	}
}

func TestValidateConnections_LongerCycle(t *testing.T) {
	conns := []*Connection{
		conn("c1", "payroll", "a", "b", OpCopy),
		conn("c2", "payroll", "b", "c", OpCopy),
		conn("c3", "payroll", "c", "a", OpCopy),
	}

	if accepted := ValidateConnections(conns); len(accepted) != 0 {
		t.Fatalf("expected cyclic form rejected entirely, got %d connections", len(accepted))
	}
}

func TestValidateConnections_ChainIsNotACycle(t *testing.T) {
	conns := []*Connection{
		conn("c1", "payroll", "a", "b", OpCopy),
		conn("c2", "payroll", "b", "c", OpCopy),
	}

	if accepted := ValidateConnections(conns); len(accepted) != 2 {
		t.Fatalf("expected chain accepted, got %d connections", len(accepted))
	}
}

func TestValidateConnections_SharedTargetAccepted(t *testing.T) {
	// Two connections may share a target; last evaluation wins at runtime.
	conns := []*Connection{
		conn("c1", "payroll", "a", "total", OpAdd),
		conn("c2", "payroll", "b", "total", OpAdd),
	}

	if accepted := ValidateConnections(conns); len(accepted) != 2 {
		t.Fatalf("expected shared-target connections accepted, got %d", len(accepted))
	}
}

func TestCheckConnection_RejectsWouldBeCycle(t *testing.T) {
	existing := []*Connection{
		conn("c1", "payroll", "a", "b", OpCopy),
	}
	candidate := conn("c2", "payroll", "b", "a", OpCopy)

	if err := CheckConnection(existing, candidate); err == nil {
		t.Fatal("expected cycle rejection")
	}
}

func TestCheckConnection_AllowsUpdateInPlace(t *testing.T) {
	existing := []*Connection{
		conn("c1", "payroll", "a", "b", OpCopy),
	}
	// Updating c1 to a different target must not collide with its old edge.
	candidate := conn("c1", "payroll", "b", "c", OpCopy)

	if err := CheckConnection(existing, candidate); err != nil {
		t.Fatalf("expected update accepted, got %v", err)
	}
}

func TestCheckConnection_RejectsSelfReference(t *testing.T) {
	candidate := conn("c1", "payroll", "a", "a", OpCopy)
	if err := CheckConnection(nil, candidate); err == nil {
		t.Fatal("expected self-reference rejection")
	}
}
