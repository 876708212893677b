package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Handler executes one tool call. params is the raw JSON object from the request.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Tool is a named handler plus the definition advertised to callers.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	InputSchema Schema  `json:"inputSchema"`
	Handler     Handler `json:"-"`
}

// ObjectSchema is shorthand for an object schema with the given properties.
func ObjectSchema(props map[string]Property, required ...string) Schema {
	return Schema{Type: "object", Properties: props, Required: required}
}

// ParamsError reports tool parameters that do not match the handler.
type ParamsError struct {
	Err error
}

func (e *ParamsError) Error() string { return e.Err.Error() }

func (e *ParamsError) Unwrap() error { return e.Err }

// Bind adapts a typed handler. Parameters are decoded strictly into P, so
// unknown keys and mistyped values surface as a ParamsError.
func Bind[P any](fn func(ctx context.Context, params P) (any, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if len(bytes.TrimSpace(raw)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&p); err != nil {
				return nil, &ParamsError{Err: err}
			}
		}
		return fn(ctx, p)
	}
}

// check reports unexpected keys first, then missing required keys. A schema
// without properties accepts anything.
func (s Schema) check(params map[string]json.RawMessage) error {
	if s.Properties == nil {
		return nil
	}
	var unexpected []string
	for k := range params {
		if _, ok := s.Properties[k]; !ok {
			unexpected = append(unexpected, k)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return &ParamsError{Err: fmt.Errorf("got unexpected keyword argument(s): %s", quoteAll(unexpected))}
	}

	var missing []string
	for _, k := range s.Required {
		if _, ok := params[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &ParamsError{Err: fmt.Errorf("missing required argument(s): %s", quoteAll(missing))}
	}
	return nil
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, ", ")
}
