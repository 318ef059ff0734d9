// Package toolregistry implements CortexOS's Tool Registry & Executor
// (spec §4.C): a name-indexed catalogue of tools with JSON-schema-
// subset argument validation, truncated output, and a never-throw
// invocation boundary, grounded on the teacher's request/response
// invoker conventions.
package toolregistry

import (
	"context"
	"fmt"
)

// ParamSchema is a JSON-schema subset covering the shapes spec §4.C
// requires: types, required fields, and enums.
type ParamSchema struct {
	Type       string                 `json:"type"` // "object"
	Properties map[string]PropSchema  `json:"properties"`
	Required   []string               `json:"required"`
}

type PropSchema struct {
	Type string   `json:"type"` // "string" | "number" | "boolean" | "array" | "object"
	Enum []string `json:"enum,omitempty"`
}

// ToolContext is immutable for the duration of a call (spec §4.C).
type ToolContext struct {
	WorkingDir  string
	ExecutionID string
}

// ToolResult is the never-throw return shape.
type ToolResult struct {
	Success  bool
	Output   string
	Error    string
	Metadata map[string]any
}

// InvokeFunc is the tool's concrete implementation.
type InvokeFunc func(ctx context.Context, args map[string]any, tc ToolContext) ToolResult

// Tool is a registry entry.
type Tool struct {
	Name        string
	Description string
	Schema      ParamSchema
	Invoke      InvokeFunc
}

// Registry is a name-indexed tool catalogue.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t under t.Name, overwriting any prior registration —
// validation happens both here (a non-empty name and an Invoke
// function) and at each call
// (argument validation), per spec §9.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Invoke == nil {
		return fmt.Errorf("tool %s: invoke function is required", t.Name)
	}
	r.tools = setTool(r.tools, t)
	return nil
}

func setTool(m map[string]Tool, t Tool) map[string]Tool {
	m[t.Name] = t
	return m
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}
