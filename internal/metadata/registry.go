package metadata

import "sync"

// Registry holds the field and connection configuration for every form.
// It is constructed once at startup and passed explicitly to consumers;
// Load replaces the contents wholesale after a sync or admin mutation.
type Registry struct {
	mu                  sync.RWMutex
	fieldsByForm        map[string][]*FieldDescriptor
	fieldsByRef         map[FieldRef]*FieldDescriptor
	connectionsByForm   map[string][]*Connection
	connectionsBySource map[FieldRef][]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		fieldsByForm:        make(map[string][]*FieldDescriptor),
		fieldsByRef:         make(map[FieldRef]*FieldDescriptor),
		connectionsByForm:   make(map[string][]*Connection),
		connectionsBySource: make(map[FieldRef][]*Connection),
	}
}

// GetField returns the descriptor for a field, or nil.
func (r *Registry) GetField(formID, fieldName string) *FieldDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fieldsByRef[FieldRef{FormID: formID, FieldName: fieldName}]
}

// FieldsForForm returns all fields registered for a form.
func (r *Registry) FieldsForForm(formID string) []*FieldDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fieldsByForm[formID]
}

// AllFields returns every descriptor grouped by form id.
func (r *Registry) AllFields() map[string][]*FieldDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]*FieldDescriptor, len(r.fieldsByForm))
	for form, fields := range r.fieldsByForm {
		out[form] = fields
	}
	return out
}

// ConnectionsForForm returns all connections whose source lives in the form.
func (r *Registry) ConnectionsForForm(formID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectionsByForm[formID]
}

// ConnectionsForSource returns all connections triggered by the given field,
// in registration order.
func (r *Registry) ConnectionsForSource(ref FieldRef) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectionsBySource[ref]
}

// AllConnections returns every registered connection.
func (r *Registry) AllConnections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, conns := range r.connectionsByForm {
		out = append(out, conns...)
	}
	return out
}

// Load replaces all fields and connections in the registry.
// Called during startup, after a registry sync, and after admin mutations.
// Connections are expected to have passed ValidateConnections already.
func (r *Registry) Load(fields []*FieldDescriptor, connections []*Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fieldsByForm = make(map[string][]*FieldDescriptor)
	r.fieldsByRef = make(map[FieldRef]*FieldDescriptor, len(fields))
	for _, f := range fields {
		r.fieldsByForm[f.FormID] = append(r.fieldsByForm[f.FormID], f)
		r.fieldsByRef[f.Ref()] = f
	}

	r.connectionsByForm = make(map[string][]*Connection)
	r.connectionsBySource = make(map[FieldRef][]*Connection, len(connections))
	for _, c := range connections {
		r.connectionsByForm[c.Source.FormID] = append(r.connectionsByForm[c.Source.FormID], c)
		r.connectionsBySource[c.Source] = append(r.connectionsBySource[c.Source], c)
	}
}
