package toolregistry

import (
	"context"
	"fmt"
	"strings"
)

// DefaultOutputCapBytes bounds tool output so downstream context
// windows stay bounded (spec §4.C). Configurable via Executor.OutputCap.
const DefaultOutputCapBytes = 32 * 1024

const truncationMarker = "\n...[truncated]"

// Executor validates args against the tool's schema and invokes it,
// never letting an internal panic or error escape as anything but a
// ToolResult{Success:false}.
type Executor struct {
	Registry  *Registry
	OutputCap int
}

func NewExecutor(reg *Registry) *Executor {
	return &Executor{Registry: reg, OutputCap: DefaultOutputCapBytes}
}

// Execute looks up name, validates args, and invokes the tool. It
// never returns an error to the caller — failures are encoded in
// ToolResult.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any, tc ToolContext) ToolResult {
	tool, ok := e.Registry.Get(name)
	if !ok {
		return ToolResult{Success: false, Error: fmt.Sprintf("unknown tool %q", name)}
	}

	if err := validate(tool.Schema, args); err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
	}

	result := e.invoke(ctx, tool, args, tc)
	result.Output = truncate(result.Output, e.cap())
	return result
}

func (e *Executor) cap() int {
	if e.OutputCap > 0 {
		return e.OutputCap
	}
	return DefaultOutputCapBytes
}

func (e *Executor) invoke(ctx context.Context, tool Tool, args map[string]any, tc ToolContext) (result ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = ToolResult{Success: false, Error: fmt.Sprintf("tool panic: %v", r)}
		}
	}()
	return tool.Invoke(ctx, args, tc)
}

func truncate(output string, cap int) string {
	if len(output) <= cap {
		return output
	}
	keep := cap - len(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	return output[:keep] + truncationMarker
}

// validate checks args against schema's required fields, types and
// enums — a JSON-schema subset, not the full spec.
func validate(schema ParamSchema, args map[string]any) error {
	for _, req := range schema.Required {
		if _, ok := args[req]; !ok {
			return fmt.Errorf("missing required field %q", req)
		}
	}
	for name, val := range args {
		prop, ok := schema.Properties[name]
		if !ok {
			continue // unknown extra fields are tolerated
		}
		if err := validateType(name, prop, val); err != nil {
			return err
		}
	}
	return nil
}

func validateType(name string, prop PropSchema, val any) error {
	switch prop.Type {
	case "string":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string", name)
		}
		if len(prop.Enum) > 0 && !contains(prop.Enum, s) {
			return fmt.Errorf("field %q must be one of %v", name, prop.Enum)
		}
	case "number":
		switch val.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("field %q must be a number", name)
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean", name)
		}
	case "array":
		if _, ok := val.([]any); !ok {
			return fmt.Errorf("field %q must be an array", name)
		}
	case "object":
		if _, ok := val.(map[string]any); !ok {
			return fmt.Errorf("field %q must be an object", name)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Dangerous-shell-command deny list (spec §4.C): the shell tool
// refuses these literal substrings without executing.
var dangerousShellSubstrings = []string{
	"rm -rf /",
	":(){:|:&};:",
	"mkfs.",
	"> /dev/sda",
	"dd if=/dev/zero of=/dev/sda",
}

// IsDangerousShellCommand reports whether cmd contains a known
// dangerous substring.
func IsDangerousShellCommand(cmd string) (string, bool) {
	for _, bad := range dangerousShellSubstrings {
		if strings.Contains(cmd, bad) {
			return bad, true
		}
	}
	return "", false
}
