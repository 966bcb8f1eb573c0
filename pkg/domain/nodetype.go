package domain

import (
	"fmt"
	"strings"
)

// NodeType identifies the kind of a pipeline node
type NodeType string

const (
	NodeTypeInput       NodeType = "input"
	NodeTypeOutput      NodeType = "output"
	NodeTypeLLM         NodeType = "llm"
	NodeTypeText        NodeType = "text"
	NodeTypeFilter      NodeType = "filter"
	NodeTypeTransform   NodeType = "transform"
	NodeTypeMerge       NodeType = "merge"
	NodeTypeConditional NodeType = "conditional"
	NodeTypeDelay       NodeType = "delay"
)

// AllNodeTypes lists every node type in catalog order
var AllNodeTypes = []NodeType{
	NodeTypeInput,
	NodeTypeOutput,
	NodeTypeLLM,
	NodeTypeText,
	NodeTypeFilter,
	NodeTypeTransform,
	NodeTypeMerge,
	NodeTypeConditional,
	NodeTypeDelay,
}

// ParseNodeType normalizes a wire type name. The editor's legacy names
// customInput and customOutput map to input and output.
func ParseNodeType(s string) (NodeType, error) {
	switch strings.TrimSpace(s) {
	case "customInput":
		return NodeTypeInput, nil
	case "customOutput":
		return NodeTypeOutput, nil
	}

	t := NodeType(strings.TrimSpace(s))
	if _, ok := t.Spec(); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
	}
	return t, nil
}

// IsValid reports whether t is part of the catalog
func (t NodeType) IsValid() bool {
	_, ok := t.Spec()
	return ok
}

// HandleRole tags a handle as outgoing (source) or incoming (target)
type HandleRole string

const (
	HandleRoleSource HandleRole = "source"
	HandleRoleTarget HandleRole = "target"
)

// HandleSpec describes one named connection point of a node type
type HandleSpec struct {
	Name string     `json:"name"`
	Role HandleRole `json:"role"`
}

// FieldKind is the editor widget kind of a configuration field
type FieldKind string

const (
	FieldKindText     FieldKind = "text"
	FieldKindTextarea FieldKind = "textarea"
	FieldKindNumber   FieldKind = "number"
	FieldKindSelect   FieldKind = "select"
	FieldKindCheckbox FieldKind = "checkbox"
)

// FieldSpec describes one configuration field of a node type.
// Default is a template for text fields: "{n}" expands to the node's
// sequence suffix.
type FieldSpec struct {
	Name    string      `json:"name"`
	Label   string      `json:"label"`
	Kind    FieldKind   `json:"kind"`
	Default interface{} `json:"default"`
	Options []string    `json:"options,omitempty"`
	Min     *float64    `json:"min,omitempty"`
}

// NodeSpec is the fixed contract of a node type: its handles and fields
type NodeSpec struct {
	Type    NodeType     `json:"type"`
	Title   string       `json:"title"`
	Handles []HandleSpec `json:"handles"`
	Fields  []FieldSpec  `json:"fields"`
}

// Handle returns the named handle
func (s NodeSpec) Handle(name string) (HandleSpec, bool) {
	for _, h := range s.Handles {
		if h.Name == name {
			return h, true
		}
	}
	return HandleSpec{}, false
}

// HandlesByRole returns the handles with the given role
func (s NodeSpec) HandlesByRole(role HandleRole) []HandleSpec {
	var out []HandleSpec
	for _, h := range s.Handles {
		if h.Role == role {
			out = append(out, h)
		}
	}
	return out
}

// DefaultData builds the initial data mapping for a node whose id ends
// in seq ("3" for "input-3").
func (s NodeSpec) DefaultData(seq string) map[string]interface{} {
	data := make(map[string]interface{}, len(s.Fields))
	for _, f := range s.Fields {
		if str, ok := f.Default.(string); ok {
			data[f.Name] = strings.ReplaceAll(str, "{n}", seq)
			continue
		}
		data[f.Name] = f.Default
	}
	return data
}

func source(name string) HandleSpec { return HandleSpec{Name: name, Role: HandleRoleSource} }
func target(name string) HandleSpec { return HandleSpec{Name: name, Role: HandleRoleTarget} }

func zero() *float64 {
	v := 0.0
	return &v
}

// Spec returns the contract for t. The switch covers every constant in
// AllNodeTypes; a new type without a case is reported as unknown.
func (t NodeType) Spec() (NodeSpec, bool) {
	switch t {
	case NodeTypeInput:
		return NodeSpec{
			Type:    t,
			Title:   "Input",
			Handles: []HandleSpec{source("value")},
			Fields: []FieldSpec{
				{Name: "inputName", Label: "Name", Kind: FieldKindText, Default: "input_{n}"},
				{Name: "inputType", Label: "Type", Kind: FieldKindSelect, Default: "Text", Options: []string{"Text", "File"}},
			},
		}, true
	case NodeTypeOutput:
		return NodeSpec{
			Type:    t,
			Title:   "Output",
			Handles: []HandleSpec{target("value")},
			Fields: []FieldSpec{
				{Name: "outputName", Label: "Name", Kind: FieldKindText, Default: "output_{n}"},
				{Name: "outputType", Label: "Type", Kind: FieldKindSelect, Default: "Text", Options: []string{"Text", "Image"}},
			},
		}, true
	case NodeTypeLLM:
		return NodeSpec{
			Type:    t,
			Title:   "LLM",
			Handles: []HandleSpec{target("system"), target("prompt"), source("response")},
		}, true
	case NodeTypeText:
		return NodeSpec{
			Type:    t,
			Title:   "Text",
			Handles: []HandleSpec{source("output")},
			Fields: []FieldSpec{
				{Name: "text", Label: "Text", Kind: FieldKindTextarea, Default: "{{input}}"},
			},
		}, true
	case NodeTypeFilter:
		return NodeSpec{
			Type:    t,
			Title:   "Filter",
			Handles: []HandleSpec{target("input"), source("output")},
			Fields: []FieldSpec{
				{Name: "filterType", Label: "Filter Type", Kind: FieldKindSelect, Default: "contains", Options: []string{"contains", "equals", "startsWith", "endsWith"}},
				{Name: "condition", Label: "Condition", Kind: FieldKindSelect, Default: "include", Options: []string{"include", "exclude"}},
				{Name: "threshold", Label: "Threshold", Kind: FieldKindNumber, Default: float64(0), Min: zero()},
			},
		}, true
	case NodeTypeTransform:
		return NodeSpec{
			Type:    t,
			Title:   "Transform",
			Handles: []HandleSpec{target("input"), source("output")},
			Fields: []FieldSpec{
				{Name: "operation", Label: "Operation", Kind: FieldKindSelect, Default: "uppercase", Options: []string{"uppercase", "lowercase", "reverse", "trim"}},
				{Name: "customRegex", Label: "Custom Regex", Kind: FieldKindText, Default: ""},
			},
		}, true
	case NodeTypeMerge:
		return NodeSpec{
			Type:    t,
			Title:   "Merge",
			Handles: []HandleSpec{target("input1"), target("input2"), target("input3"), source("output")},
			Fields: []FieldSpec{
				{Name: "strategy", Label: "Strategy", Kind: FieldKindSelect, Default: "concatenate", Options: []string{"concatenate", "interleave", "custom"}},
				{Name: "delimiter", Label: "Delimiter", Kind: FieldKindText, Default: ", "},
			},
		}, true
	case NodeTypeConditional:
		return NodeSpec{
			Type:    t,
			Title:   "Conditional",
			Handles: []HandleSpec{target("input"), source("true"), source("false")},
			Fields: []FieldSpec{
				{Name: "conditionType", Label: "Condition", Kind: FieldKindSelect, Default: "equals", Options: []string{"equals", "notEquals", "greaterThan", "lessThan"}},
				{Name: "comparisonValue", Label: "Value", Kind: FieldKindText, Default: ""},
				{Name: "operator", Label: "Operator", Kind: FieldKindSelect, Default: "and", Options: []string{"and", "or"}},
			},
		}, true
	case NodeTypeDelay:
		return NodeSpec{
			Type:    t,
			Title:   "Delay",
			Handles: []HandleSpec{target("input"), source("output")},
			Fields: []FieldSpec{
				{Name: "delayAmount", Label: "Delay", Kind: FieldKindNumber, Default: float64(1000), Min: zero()},
				{Name: "unit", Label: "Unit", Kind: FieldKindSelect, Default: "ms", Options: []string{"ms", "seconds", "minutes"}},
				{Name: "enabled", Label: "Enabled", Kind: FieldKindCheckbox, Default: true},
			},
		}, true
	default:
		return NodeSpec{}, false
	}
}

// Catalog returns every node type description in catalog order
func Catalog() []NodeSpec {
	specs := make([]NodeSpec, 0, len(AllNodeTypes))
	for _, t := range AllNodeTypes {
		if s, ok := t.Spec(); ok {
			specs = append(specs, s)
		}
	}
	return specs
}
