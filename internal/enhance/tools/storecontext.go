package tools

import (
	"context"
	"strings"
)

// storeContextArgs is the JSON-decoded input for "store_context".
type storeContextArgs struct {
	EntityType string `json:"entityType" jsonschema:"enum=person,enum=project,enum=company,enum=term" jsonschema_description:"Kind of entity the information is about."`
	Name       string `json:"name" jsonschema_description:"Name of the entity."`
	Details    string `json:"details,omitempty" jsonschema_description:"What to remember."`
}

// storeContextMessage explains why nothing was written.
const storeContextMessage = "Context is only updated through user clarifications; nothing was stored."

// newStoreContext is deliberately inert: the model may call it, but
// durable writes only happen on explicit user answers.
func newStoreContext(_ *Context) Tool {
	return New("store_context",
		"Suggest remembering new information about a person, project, company or term.",
		func(_ context.Context, a storeContextArgs) (Result, error) {
			return ok(map[string]any{
				"stored":     false,
				"entityType": strings.TrimSpace(a.EntityType),
				"name":       strings.TrimSpace(a.Name),
				"message":    storeContextMessage,
			}), nil
		})
}
