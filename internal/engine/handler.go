package engine

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"formlink-backend/internal/metadata"
	"formlink-backend/internal/store"
	"formlink-backend/internal/suggest"
)

type Handler struct {
	store     *store.Store
	registry  *metadata.Registry
	evaluator *Evaluator
	suggester *suggest.Loader
	budget    int
}

func NewHandler(s *store.Store, reg *metadata.Registry, eval *Evaluator, suggester *suggest.Loader, budget int) *Handler {
	return &Handler{store: s, registry: reg, evaluator: eval, suggester: suggester, budget: budget}
}

// GetFormFields handles GET /api/form_fields
func (h *Handler) GetFormFields(c *fiber.Ctx) error {
	fields := h.registry.AllFields()
	if fields == nil {
		fields = map[string][]*metadata.FieldDescriptor{}
	}
	return c.JSON(fiber.Map{"fields": fields})
}

// GetConnections handles GET /api/field_connections
func (h *Handler) GetConnections(c *fiber.Ctx) error {
	connections := h.registry.AllConnections()
	if connections == nil {
		connections = []*metadata.Connection{}
	}
	return c.JSON(fiber.Map{"connections": connections})
}

// GetRelatedValue handles GET /api/related_field_value
// Serves the related-value contract from the _related_values table. A miss
// is success=false, not an HTTP error — callers fall back to their caches.
func (h *Handler) GetRelatedValue(c *fiber.Ctx) error {
	sourceField := c.Query("source_field")
	sourceValue := c.Query("source_value")
	targetField := c.Query("target_field")
	if sourceField == "" || targetField == "" {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "source_field and target_field are required"))
	}

	pb := h.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(c.Context(), h.store.DB,
		fmt.Sprintf(`SELECT value FROM _related_values
		 WHERE source_field = %s AND source_value = %s AND target_field = %s`,
			pb.Add(sourceField), pb.Add(sourceValue), pb.Add(targetField)),
		pb.Params()...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(fiber.Map{"success": false})
		}
		return fmt.Errorf("related value %s/%s/%s: %w", sourceField, sourceValue, targetField, err)
	}

	return c.JSON(fiber.Map{"success": true, "value": row["value"]})
}

// GetSuggestions handles GET /api/suggestions
func (h *Handler) GetSuggestions(c *fiber.Ctx) error {
	formID := c.Query("form_id")
	fieldName := c.Query("field")
	query := c.Query("query")
	if formID == "" || fieldName == "" {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "form_id and field are required"))
	}

	suggestions := h.suggester.Suggest(c.Context(), formID, fieldName, query)
	if suggestions == nil {
		suggestions = []string{}
	}
	return c.JSON(fiber.Map{"success": true, "suggestions": suggestions})
}

type evaluateRequest struct {
	Field  string            `json:"field"`
	Value  string            `json:"value"`
	Values map[string]string `json:"values"`
}

type primeRequest struct {
	Values map[string]string `json:"values"`
}

// Evaluate handles POST /api/forms/:form_id/evaluate — applies one field
// change and returns the propagated changes plus the updated value set.
func (h *Handler) Evaluate(c *fiber.Ctx) error {
	formID, err := h.resolveForm(c)
	if err != nil {
		return err
	}

	var body evaluateRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if body.Field == "" {
		return respondError(c, ValidationError("field is required"))
	}

	session := NewSession(h.registry, h.evaluator, formID, body.Values, h.budget)
	changes := session.Apply(c.Context(), body.Field, body.Value)
	if changes == nil {
		changes = []Change{}
	}

	return c.JSON(fiber.Map{"data": fiber.Map{
		"changes": changes,
		"values":  session.Values(),
	}})
}

// Prime handles POST /api/forms/:form_id/prime — the initial-value pass for
// a freshly rendered form.
func (h *Handler) Prime(c *fiber.Ctx) error {
	formID, err := h.resolveForm(c)
	if err != nil {
		return err
	}

	var body primeRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	session := NewSession(h.registry, h.evaluator, formID, body.Values, h.budget)
	changes := session.Prime(c.Context())
	if changes == nil {
		changes = []Change{}
	}

	return c.JSON(fiber.Map{"data": fiber.Map{
		"changes": changes,
		"values":  session.Values(),
	}})
}

// Submit handles POST /api/forms/:form_id/submit — feeds submitted values
// into the suggestion history.
func (h *Handler) Submit(c *fiber.Ctx) error {
	formID, err := h.resolveForm(c)
	if err != nil {
		return err
	}

	var body primeRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	h.suggester.RecordValues(c.Context(), formID, body.Values)
	return c.JSON(fiber.Map{"data": fiber.Map{"form_id": formID, "recorded": true}})
}

func (h *Handler) resolveForm(c *fiber.Ctx) (string, error) {
	formID := c.Params("form_id")
	if len(h.registry.FieldsForForm(formID)) == 0 && len(h.registry.ConnectionsForForm(formID)) == 0 {
		// Returned as the handler error so the central ErrorHandler renders
		// the envelope; writing the response here would let the handler keep
		// running and overwrite it with a data body.
		return "", UnknownFormError(formID)
	}
	return formID, nil
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}
