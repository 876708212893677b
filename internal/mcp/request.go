package mcp

import (
	"encoding/json"
	"errors"
	"math"
	"unicode/utf8"
)

// Request is a decoded POST /mcp body.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     *int64          `json:"id,omitempty"`
}

// ParseRequest decodes and validates body. Failures are returned as a
// *DispatchError of kind KindInvalidJSON or KindInvalidRequest.
func ParseRequest(body []byte) (*Request, error) {
	if !utf8.Valid(body) {
		return nil, &DispatchError{Kind: KindInvalidJSON, Err: errors.New("request body is not valid UTF-8")}
	}
	var probe any
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, &DispatchError{Kind: KindInvalidJSON, Err: err}
	}

	fields, ok := probe.(map[string]any)
	if !ok {
		return nil, invalidRequest("request body must be a JSON object")
	}

	req := &Request{}

	method, present := fields["method"]
	if !present {
		return nil, invalidRequest("method: field required")
	}
	if req.Method, ok = method.(string); !ok {
		return nil, invalidRequest("method: input should be a valid string")
	}

	params, present := fields["params"]
	if !present {
		return nil, invalidRequest("params: field required")
	}
	if _, ok := params.(map[string]any); !ok {
		return nil, invalidRequest("params: input should be a valid dictionary")
	}

	switch id := fields["id"].(type) {
	case nil:
	case float64:
		if id != math.Trunc(id) || math.Abs(id) > math.MaxInt64 {
			return nil, invalidRequest("id: input should be a valid integer")
		}
		v := int64(id)
		req.ID = &v
	default:
		return nil, invalidRequest("id: input should be a valid integer")
	}

	// Keep params as raw JSON so handlers decode into their own types.
	var raw struct {
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &DispatchError{Kind: KindInvalidJSON, Err: err}
	}
	req.Params = raw.Params
	return req, nil
}

func invalidRequest(msg string) error {
	return &DispatchError{Kind: KindInvalidRequest, Err: errors.New(msg)}
}
