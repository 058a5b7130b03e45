// Package mcp exposes the local task store as MCP tools over stdio.
package mcp

import (
	"maps"
	"slices"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// paramSpec describes one tool argument. Array parameters are lists of strings.
type paramSpec struct {
	Type        string
	Description string
	Required    bool
	Enum        []string
}

func (p paramSpec) schema() map[string]any {
	s := map[string]any{"type": p.Type, "description": p.Description}
	if p.Type == "array" {
		s["items"] = map[string]any{"type": "string"}
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	return s
}

type toolSpec struct {
	Name        string
	Description string
	Parameters  map[string]paramSpec
}

// tool builds the SDK tool with an object input schema. Required names are
// listed in sorted order.
func (t toolSpec) tool() *mcpsdk.Tool {
	props := map[string]any{}
	var required []string
	for _, name := range slices.Sorted(maps.Keys(t.Parameters)) {
		p := t.Parameters[name]
		props[name] = p.schema()
		if p.Required {
			required = append(required, name)
		}
	}

	schema := map[string]any{"type": "object", "properties": props}
	if required != nil {
		schema["required"] = required
	}
	return &mcpsdk.Tool{Name: t.Name, Description: t.Description, InputSchema: schema}
}
