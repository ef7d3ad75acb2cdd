package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"formlink-backend/internal/store"
)

// LoadAll reads all form fields and connections from the database and
// populates the registry. Malformed rows are logged and skipped.
func LoadAll(ctx context.Context, s *store.Store, reg *Registry) error {
	fields, err := loadFields(ctx, s)
	if err != nil {
		return fmt.Errorf("load form fields: %w", err)
	}

	connections, err := loadConnections(ctx, s)
	if err != nil {
		return fmt.Errorf("load field connections: %w", err)
	}

	connections = ValidateConnections(connections)
	reg.Load(fields, connections)

	log.Printf("Loaded %d fields, %d connections into registry", len(fields), len(connections))
	return nil
}

// Reload is an alias for LoadAll, called after admin mutations.
func Reload(ctx context.Context, s *store.Store, reg *Registry) error {
	return LoadAll(ctx, s, reg)
}

func loadFields(ctx context.Context, s *store.Store) ([]*FieldDescriptor, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT form_id, field_name, definition FROM _form_fields ORDER BY form_id, field_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []*FieldDescriptor
	for rows.Next() {
		var formID, fieldName string
		var defJSON []byte
		if err := rows.Scan(&formID, &fieldName, &defJSON); err != nil {
			return nil, fmt.Errorf("scan field row: %w", err)
		}

		var field FieldDescriptor
		if err := json.Unmarshal(defJSON, &field); err != nil {
			log.Printf("WARN: skipping field %s.%s (invalid JSON): %v", formID, fieldName, err)
			continue
		}
		field.FormID = formID
		field.FieldName = fieldName
		fields = append(fields, &field)
	}
	return fields, rows.Err()
}

func loadConnections(ctx context.Context, s *store.Store) ([]*Connection, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, definition FROM _field_connections ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []*Connection
	for rows.Next() {
		var id string
		var defJSON []byte
		if err := rows.Scan(&id, &defJSON); err != nil {
			return nil, fmt.Errorf("scan connection row: %w", err)
		}

		var conn Connection
		if err := json.Unmarshal(defJSON, &conn); err != nil {
			log.Printf("WARN: skipping connection %s (invalid JSON): %v", id, err)
			continue
		}
		conn.ID = id
		connections = append(connections, &conn)
	}
	return connections, rows.Err()
}
