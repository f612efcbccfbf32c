package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"plan-chat-backend/internal/models"
	"plan-chat-backend/internal/plan"
)

const systemPromptTemplate = `You are an AI assistant in a chat application.
When the user asks for a "project plan", "workstreams", "deliverables", or anything similar:
- Output the plan inside a JSON structured object matching this JSON Schema:
{{ .Schema | indent 2 }}
- Wrap that JSON inside a fenced code block marked as {{ .Fence }}.
- Keep any explanation outside the fenced block.

Example format:

{{ .Fence }}
{{ .Example }}
` + "```"

var examplePlan = models.ProjectPlan{
	Workstreams: []models.Workstream{
		{
			Title:       "Example Workstream",
			Description: "Short description.",
			Deliverables: []models.Deliverable{
				{Title: "Deliverable A", Description: "..."},
			},
		},
	},
}

// SystemPrompt renders the instruction attached to every response request.
// It tells the backend how to emit project-plan blocks.
func SystemPrompt() (string, error) {
	tmpl, err := template.New("system").Funcs(sprig.TxtFuncMap()).Parse(systemPromptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse system prompt: %w", err)
	}

	schema, err := plan.Schema()
	if err != nil {
		return "", fmt.Errorf("failed to build plan schema: %w", err)
	}
	example, err := json.MarshalIndent(examplePlan, "", "  ")
	if err != nil {
		return "", err
	}

	var b bytes.Buffer
	err = tmpl.Execute(&b, map[string]string{
		"Schema":  string(schema),
		"Fence":   "```" + plan.FenceTag,
		"Example": string(example),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return b.String(), nil
}
