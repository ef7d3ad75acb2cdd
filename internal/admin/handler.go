package admin

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"formlink-backend/internal/metadata"
	"formlink-backend/internal/store"
)

// Handler owns the configuration CRUD: form fields, connections and
// related-value rows live in the database; every mutation reloads the
// registry wholesale so running sessions pick up the new configuration.
type Handler struct {
	store    *store.Store
	registry *metadata.Registry
}

func NewHandler(s *store.Store, reg *metadata.Registry) *Handler {
	return &Handler{store: s, registry: reg}
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	admin := app.Group("/api/_admin")
	for _, mw := range middleware {
		admin.Use(mw)
	}

	admin.Get("/fields", h.ListFields)
	admin.Post("/fields", h.UpsertField)
	admin.Delete("/fields/:form_id/:field_name", h.DeleteField)

	admin.Get("/connections", h.ListConnections)
	admin.Post("/connections", h.CreateConnection)
	admin.Put("/connections/:id", h.UpdateConnection)
	admin.Delete("/connections/:id", h.DeleteConnection)

	admin.Post("/related_values", h.UpsertRelatedValue)
	admin.Post("/reload", h.Reload)
}

// --- Field Endpoints ---

func (h *Handler) ListFields(c *fiber.Ctx) error {
	rows, err := store.QueryRows(c.Context(), h.store.DB,
		"SELECT form_id, field_name, definition, created_at, updated_at FROM _form_fields ORDER BY form_id, field_name")
	if err != nil {
		return fmt.Errorf("list fields: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{"data": rows})
}

func (h *Handler) UpsertField(c *fiber.Ctx) error {
	var field metadata.FieldDescriptor
	if err := c.BodyParser(&field); err != nil {
		return badRequest(c, "Invalid JSON body")
	}
	if field.FormID == "" || field.FieldName == "" {
		return unprocessable(c, "form_id and field_name are required")
	}

	defJSON, err := json.Marshal(field)
	if err != nil {
		return fmt.Errorf("marshal field: %w", err)
	}

	pb := h.store.Dialect.NewParamBuilder()
	now := h.store.Dialect.NowExpr()
	_, err = store.Exec(c.Context(), h.store.DB,
		fmt.Sprintf(`INSERT INTO _form_fields (form_id, field_name, definition) VALUES (%s, %s, %s)
		 ON CONFLICT (form_id, field_name) DO UPDATE SET definition = excluded.definition, updated_at = %s`,
			pb.Add(field.FormID), pb.Add(field.FieldName), pb.Add(string(defJSON)), now),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("upsert field %s.%s: %w", field.FormID, field.FieldName, err)
	}

	if err := metadata.Reload(c.Context(), h.store, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}
	return c.Status(201).JSON(fiber.Map{"data": field})
}

func (h *Handler) DeleteField(c *fiber.Ctx) error {
	formID := c.Params("form_id")
	fieldName := c.Params("field_name")

	pb := h.store.Dialect.NewParamBuilder()
	affected, err := store.Exec(c.Context(), h.store.DB,
		fmt.Sprintf("DELETE FROM _form_fields WHERE form_id = %s AND field_name = %s",
			pb.Add(formID), pb.Add(fieldName)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete field %s.%s: %w", formID, fieldName, err)
	}
	if affected == 0 {
		return notFound(c, "Field not found: "+formID+"."+fieldName)
	}

	if err := metadata.Reload(c.Context(), h.store, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"form_id": formID, "field_name": fieldName}})
}

// --- Connection Endpoints ---

func (h *Handler) ListConnections(c *fiber.Ctx) error {
	rows, err := store.QueryRows(c.Context(), h.store.DB,
		"SELECT id, form_id, definition, created_at, updated_at FROM _field_connections ORDER BY created_at, id")
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{"data": rows})
}

func (h *Handler) CreateConnection(c *fiber.Ctx) error {
	var conn metadata.Connection
	if err := c.BodyParser(&conn); err != nil {
		return badRequest(c, "Invalid JSON body")
	}
	conn.ID = store.GenerateUUID()

	if err := metadata.CheckConnection(h.registry.AllConnections(), &conn); err != nil {
		return unprocessable(c, err.Error())
	}

	if err := h.insertConnection(c, &conn); err != nil {
		return err
	}
	if err := metadata.Reload(c.Context(), h.store, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}
	return c.Status(201).JSON(fiber.Map{"data": conn})
}

func (h *Handler) UpdateConnection(c *fiber.Ctx) error {
	id := c.Params("id")

	var conn metadata.Connection
	if err := c.BodyParser(&conn); err != nil {
		return badRequest(c, "Invalid JSON body")
	}
	conn.ID = id // ensure id matches URL

	if err := metadata.CheckConnection(h.registry.AllConnections(), &conn); err != nil {
		return unprocessable(c, err.Error())
	}

	defJSON, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}

	pb := h.store.Dialect.NewParamBuilder()
	affected, err := store.Exec(c.Context(), h.store.DB,
		fmt.Sprintf("UPDATE _field_connections SET form_id = %s, definition = %s, updated_at = %s WHERE id = %s",
			pb.Add(conn.Source.FormID), pb.Add(string(defJSON)), h.store.Dialect.NowExpr(), pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("update connection %s: %w", id, err)
	}
	if affected == 0 {
		return notFound(c, "Connection not found: "+id)
	}

	if err := metadata.Reload(c.Context(), h.store, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}
	return c.JSON(fiber.Map{"data": conn})
}

func (h *Handler) DeleteConnection(c *fiber.Ctx) error {
	id := c.Params("id")

	pb := h.store.Dialect.NewParamBuilder()
	affected, err := store.Exec(c.Context(), h.store.DB,
		fmt.Sprintf("DELETE FROM _field_connections WHERE id = %s", pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	if affected == 0 {
		return notFound(c, "Connection not found: "+id)
	}

	if err := metadata.Reload(c.Context(), h.store, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

// --- Related Values ---

type relatedValueRequest struct {
	SourceField string `json:"source_field"`
	SourceValue string `json:"source_value"`
	TargetField string `json:"target_field"`
	Value       string `json:"value"`
}

func (h *Handler) UpsertRelatedValue(c *fiber.Ctx) error {
	var body relatedValueRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid JSON body")
	}
	if body.SourceField == "" || body.TargetField == "" {
		return unprocessable(c, "source_field and target_field are required")
	}

	pb := h.store.Dialect.NewParamBuilder()
	now := h.store.Dialect.NowExpr()
	_, err := store.Exec(c.Context(), h.store.DB,
		fmt.Sprintf(`INSERT INTO _related_values (source_field, source_value, target_field, value) VALUES (%s, %s, %s, %s)
		 ON CONFLICT (source_field, source_value, target_field) DO UPDATE SET value = excluded.value, updated_at = %s`,
			pb.Add(body.SourceField), pb.Add(body.SourceValue), pb.Add(body.TargetField), pb.Add(body.Value), now),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("upsert related value: %w", err)
	}
	return c.Status(201).JSON(fiber.Map{"data": body})
}

// Reload re-reads all configuration from the database into the registry.
func (h *Handler) Reload(c *fiber.Ctx) error {
	if err := metadata.Reload(c.Context(), h.store, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"reloaded": true}})
}

func (h *Handler) insertConnection(c *fiber.Ctx, conn *metadata.Connection) error {
	defJSON, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}

	pb := h.store.Dialect.NewParamBuilder()
	_, err = store.Exec(c.Context(), h.store.DB,
		fmt.Sprintf("INSERT INTO _field_connections (id, form_id, definition) VALUES (%s, %s, %s)",
			pb.Add(conn.ID), pb.Add(conn.Source.FormID), pb.Add(string(defJSON))),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(400).JSON(fiber.Map{"error": fiber.Map{"code": "INVALID_PAYLOAD", "message": msg}})
}

func unprocessable(c *fiber.Ctx, msg string) error {
	return c.Status(422).JSON(fiber.Map{"error": fiber.Map{"code": "VALIDATION_FAILED", "message": msg}})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(404).JSON(fiber.Map{"error": fiber.Map{"code": "NOT_FOUND", "message": msg}})
}
