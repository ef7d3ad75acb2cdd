package suggest

import (
	"context"
	"fmt"

	"formlink-backend/internal/store"
)

// History is the source of previously-seen field values. Implemented by
// StoreHistory in production; tests substitute a fake.
type History interface {
	Search(ctx context.Context, formID, fieldName, query string, limit int) ([]string, error)
	Record(ctx context.Context, formID, fieldName, value string) error
}

// StoreHistory backs suggestions with the _suggestions table: one row per
// distinct (form, field, value), ranked by how often the value was seen.
type StoreHistory struct {
	store *store.Store
}

func NewStoreHistory(s *store.Store) *StoreHistory {
	return &StoreHistory{store: s}
}

// Search returns values for the field starting with query, most frequent first.
func (h *StoreHistory) Search(ctx context.Context, formID, fieldName, query string, limit int) ([]string, error) {
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`SELECT value FROM _suggestions
		 WHERE form_id = %s AND field_name = %s AND value LIKE %s
		 ORDER BY seen_count DESC, value
		 LIMIT %d`,
		pb.Add(formID), pb.Add(fieldName), pb.Add(query+"%"), limit)

	values, err := store.QueryStrings(ctx, h.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("search suggestions: %w", err)
	}
	return values, nil
}

// Record notes that a value was submitted for a field, creating the history
// row or bumping its seen count.
func (h *StoreHistory) Record(ctx context.Context, formID, fieldName, value string) error {
	pb := h.store.Dialect.NewParamBuilder()
	now := h.store.Dialect.NowExpr()
	_, err := store.Exec(ctx, h.store.DB,
		fmt.Sprintf(`INSERT INTO _suggestions (form_id, field_name, value, seen_count, last_seen)
		 VALUES (%s, %s, %s, 1, %s)
		 ON CONFLICT (form_id, field_name, value)
		 DO UPDATE SET seen_count = seen_count + 1, last_seen = %s`,
			pb.Add(formID), pb.Add(fieldName), pb.Add(value), now, now),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("record suggestion: %w", err)
	}
	return nil
}
