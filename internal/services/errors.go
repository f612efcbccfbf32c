package services

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// InvalidModelError rejects a model id that is not in the catalog.
type InvalidModelError struct {
	Model   string
	Allowed []string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("Invalid model. Allowed models: %s", strings.Join(e.Allowed, ", "))
}

type ChatNotFoundError struct {
	ChatID string
}

func (e *ChatNotFoundError) Error() string { return "Chat not found" }

// UpstreamGenerationError wraps a failed response generation.
type UpstreamGenerationError struct {
	Err error
}

func (e *UpstreamGenerationError) Error() string {
	return fmt.Sprintf("Failed to get response from LLM: %v", e.Err)
}

func (e *UpstreamGenerationError) Unwrap() error { return e.Err }
