package metadata

import (
	"fmt"
	"log"
)

// CheckConnection validates a candidate connection against the set it would
// join: the operation must be known, source and target must differ, and the
// resulting per-form graph must stay acyclic. Used by admin mutations so a
// bad rule is rejected up front instead of silently dropped at load time.
func CheckConnection(existing []*Connection, candidate *Connection) error {
	if !candidate.Operation.Valid() {
		return fmt.Errorf("unknown operation %q", candidate.Operation)
	}
	if candidate.Source == candidate.Target {
		return fmt.Errorf("source and target must differ")
	}

	var formConns []*Connection
	for _, c := range existing {
		if c.ID == candidate.ID {
			continue // updating in place
		}
		if c.Source.FormID == candidate.Source.FormID {
			formConns = append(formConns, c)
		}
	}
	formConns = append(formConns, candidate)

	if cycle := findCycle(formConns); cycle != "" {
		return fmt.Errorf("connection would create a cycle through field %q", cycle)
	}
	return nil
}

// ValidateConnections filters a connection set down to the ones safe to load:
//   - connections with an unknown operation kind are skipped;
//   - self-referential connections (source == target) are skipped, since a
//     self-edge would re-trigger itself immediately under chaining;
//   - when a form's connection graph contains a cycle, that form's entire
//     connection set is rejected, so chained evaluation terminates for any
//     configuration that loads.
//
// Rejections are logged, never fatal — misconfiguration degrades to "that
// rule does not run", matching the loader's skip-on-bad-row posture.
func ValidateConnections(connections []*Connection) []*Connection {
	byForm := make(map[string][]*Connection)
	var order []string

	for _, c := range connections {
		if !c.Operation.Valid() {
			log.Printf("WARN: skipping connection %s: unknown operation %q", c.ID, c.Operation)
			continue
		}
		if c.Source == c.Target {
			log.Printf("WARN: skipping connection %s: source equals target (%s.%s)",
				c.ID, c.Source.FormID, c.Source.FieldName)
			continue
		}
		form := c.Source.FormID
		if _, seen := byForm[form]; !seen {
			order = append(order, form)
		}
		byForm[form] = append(byForm[form], c)
	}

	var accepted []*Connection
	for _, form := range order {
		conns := byForm[form]
		if cycle := findCycle(conns); cycle != "" {
			log.Printf("WARN: rejecting all %d connections for form %s: cycle through field %q",
				len(conns), form, cycle)
			continue
		}
		accepted = append(accepted, conns...)
	}
	return accepted
}

// findCycle runs a three-color DFS over the source→target edges and returns
// the name of a field on a cycle, or "" when the graph is acyclic. Edges to
// fields in other forms terminate locally; cross-form cycles cannot occur
// because sessions evaluate one form at a time.
func findCycle(conns []*Connection) string {
	adj := make(map[string][]string)
	for _, c := range conns {
		if c.Target.FormID != c.Source.FormID {
			continue
		}
		adj[c.Source.FieldName] = append(adj[c.Source.FieldName], c.Target.FieldName)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(adj))

	var visit func(node string) string
	visit = func(node string) string {
		color[node] = gray
		for _, next := range adj[node] {
			switch color[next] {
			case gray:
				return next
			case white:
				if hit := visit(next); hit != "" {
					return hit
				}
			}
		}
		color[node] = black
		return ""
	}

	for node := range adj {
		if color[node] == white {
			if hit := visit(node); hit != "" {
				return hit
			}
		}
	}
	return ""
}
