package engine

import (
	"context"
	"log"

	"formlink-backend/internal/metadata"
)

// DefaultTriggerBudget bounds evaluations per applied input when no budget
// is configured.
const DefaultTriggerBudget = 100

// Change records one target-field write (or skip) produced by propagation.
type Change struct {
	ConnectionID string `json:"connection_id"`
	Field        string `json:"field"`
	Value        string `json:"value,omitempty"`
	Status       Status `json:"status"`
	Reason       string `json:"reason,omitempty"`
}

// Session is the server-side replacement for the browser binding layer: it
// holds the working values of one form view and propagates connections when
// values change. Writing a target enqueues it as a further source, so
// chains (A→B→C) fire without a direct A→C connection. Connections for one
// source run in registration order; no ordering is promised across sources,
// and when two connections share a target the last evaluation wins.
//
// Load-time validation rejects cyclic configurations; the trigger budget is
// a second bound so no input can run the engine indefinitely regardless of
// what the registry holds. A Session is not safe for concurrent use.
type Session struct {
	registry  *metadata.Registry
	evaluator *Evaluator
	formID    string
	values    map[string]string
	budget    int
}

func NewSession(reg *metadata.Registry, eval *Evaluator, formID string, values map[string]string, budget int) *Session {
	if budget <= 0 {
		budget = DefaultTriggerBudget
	}
	working := make(map[string]string, len(values))
	for k, v := range values {
		working[k] = v
	}
	return &Session{
		registry:  reg,
		evaluator: eval,
		formID:    formID,
		values:    working,
		budget:    budget,
	}
}

// Values returns a copy of the current form values.
func (s *Session) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Get returns the current value of one field.
func (s *Session) Get(field string) string {
	return s.values[field]
}

// Apply sets a field to a new value and propagates every connection
// downstream of it, returning the resulting changes in evaluation order.
func (s *Session) Apply(ctx context.Context, field, value string) []Change {
	s.values[field] = value
	return s.propagate(ctx, []string{field})
}

// Prime runs the initial-value pass: every field that already holds a
// non-empty value fires its connections once, so connected targets populate
// on first render rather than only on edits. The whole pass shares one
// trigger budget.
func (s *Session) Prime(ctx context.Context) []Change {
	var seeds []string
	for _, f := range s.registry.FieldsForForm(s.formID) {
		if s.values[f.FieldName] == "" {
			continue
		}
		if len(s.registry.ConnectionsForSource(f.Ref())) > 0 {
			seeds = append(seeds, f.FieldName)
		}
	}
	return s.propagate(ctx, seeds)
}

func (s *Session) propagate(ctx context.Context, seeds []string) []Change {
	var changes []Change
	queue := seeds
	evaluations := 0

	for len(queue) > 0 {
		field := queue[0]
		queue = queue[1:]

		ref := metadata.FieldRef{FormID: s.formID, FieldName: field}
		for _, conn := range s.registry.ConnectionsForSource(ref) {
			if evaluations >= s.budget {
				log.Printf("WARN: form %s: trigger budget (%d) exhausted, stopping propagation", s.formID, s.budget)
				return changes
			}
			evaluations++

			if conn.Target.FormID != s.formID {
				changes = append(changes, Change{
					ConnectionID: conn.ID,
					Field:        conn.Target.FieldName,
					Status:       StatusSkipped,
					Reason:       "target outside form",
				})
				continue
			}

			result := s.evaluator.Evaluate(ctx, conn, s.values[field], s.values)
			change := Change{
				ConnectionID: conn.ID,
				Field:        conn.Target.FieldName,
				Value:        result.Value,
				Status:       result.Status,
				Reason:       result.Reason,
			}
			changes = append(changes, change)

			if result.Status == StatusSkipped {
				continue
			}

			s.values[conn.Target.FieldName] = result.Value
			queue = append(queue, conn.Target.FieldName)
		}
	}
	return changes
}
