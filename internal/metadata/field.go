package metadata

// FieldRef identifies one input within one form.
type FieldRef struct {
	FormID    string `json:"form_id"`
	FieldName string `json:"field_name"`
}

// Key returns the canonical "formId.fieldName" identifier used in lookup
// requests and cache keys.
func (r FieldRef) Key() string {
	return r.FormID + "." + r.FieldName
}

// FieldDescriptor describes a form field as delivered by configuration.
// Immutable once loaded into the registry.
type FieldDescriptor struct {
	FormID             string `json:"form_id"`
	FieldName          string `json:"field_name"`
	SuggestionsEnabled bool   `json:"suggestions_enabled,omitempty"`
}

// Ref returns the FieldRef for this descriptor.
func (f *FieldDescriptor) Ref() FieldRef {
	return FieldRef{FormID: f.FormID, FieldName: f.FieldName}
}
