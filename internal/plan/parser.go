// Package plan implements the project-plan content convention: assistant
// replies may embed a fenced block tagged project-plan whose body is a JSON
// ProjectPlan. Everything outside such blocks is free text.
package plan

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/invopop/jsonschema"

	"plan-chat-backend/internal/models"
)

// FenceTag is the info string that marks a project-plan block.
const FenceTag = "project-plan"

var fenceRegexp = regexp.MustCompile("(?s)```" + regexp.QuoteMeta(FenceTag) + "\n(.*?)```")

// Segment is either plain text or a parsed plan, never both.
type Segment struct {
	Text string              `json:"text,omitempty"`
	Plan *models.ProjectPlan `json:"plan,omitempty"`
}

func (s Segment) IsPlan() bool { return s.Plan != nil }

// Parse splits content into ordered text and plan segments. A fenced block
// whose body is not a JSON object is kept verbatim, fences included, as text.
// Empty text segments are dropped.
func Parse(content string) []Segment {
	segments := []Segment{}
	lastEnd := 0

	for _, m := range fenceRegexp.FindAllStringSubmatchIndex(content, -1) {
		start, end := m[0], m[1]
		bodyStart, bodyEnd := m[2], m[3]

		if start > lastEnd {
			segments = append(segments, Segment{Text: content[lastEnd:start]})
		}

		if p, ok := decode(content[bodyStart:bodyEnd]); ok {
			segments = append(segments, Segment{Plan: p})
		} else {
			segments = append(segments, Segment{Text: content[start:end]})
		}

		lastEnd = end
	}

	if lastEnd < len(content) {
		segments = append(segments, Segment{Text: content[lastEnd:]})
	}

	return segments
}

// Plans returns only the plans found in content, in order.
func Plans(content string) []*models.ProjectPlan {
	var plans []*models.ProjectPlan
	for _, s := range Parse(content) {
		if s.IsPlan() {
			plans = append(plans, s.Plan)
		}
	}
	return plans
}

// Fence wraps a JSON body in a project-plan block.
func Fence(body string) string {
	return "```" + FenceTag + "\n" + body + "\n```"
}

func decode(body string) (*models.ProjectPlan, bool) {
	trimmed := bytes.TrimSpace([]byte(body))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var p models.ProjectPlan
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, false
	}
	return &p, true
}

// Schema returns the JSON Schema of a ProjectPlan, inlined without $defs so
// it can be pasted into a prompt.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := r.Reflect(&models.ProjectPlan{})
	s.Version = ""
	s.ID = ""
	return json.MarshalIndent(s, "", "  ")
}
