package models

// ProjectPlan is the structured payload an assistant embeds in a
// project-plan fenced block.
type ProjectPlan struct {
	Workstreams []Workstream `json:"workstreams" jsonschema:"description=Ordered workstreams of the plan"`
}

type Workstream struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Deliverables []Deliverable `json:"deliverables,omitempty"`
}

type Deliverable struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
