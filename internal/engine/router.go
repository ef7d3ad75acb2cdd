package engine

import "github.com/gofiber/fiber/v2"

// RegisterRoutes wires the public form-assist API.
func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/api/form_fields", h.GetFormFields)
	app.Get("/api/field_connections", h.GetConnections)
	app.Get("/api/related_field_value", h.GetRelatedValue)
	app.Get("/api/suggestions", h.GetSuggestions)

	app.Post("/api/forms/:form_id/evaluate", h.Evaluate)
	app.Post("/api/forms/:form_id/prime", h.Prime)
	app.Post("/api/forms/:form_id/submit", h.Submit)
}
