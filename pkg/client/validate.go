package client

import (
	"bytes"
	"encoding/json"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
)

// Validate checks the shape of a raw scan response and decodes it.
//
// A successful payload must carry a numeric data.summary.total_packages and a
// data.results list. Any violation yields a parse_error.
func Validate(raw []byte) (geekwala.Response, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return geekwala.Response{}, parseError("Invalid API response: expected a JSON object", err)
	}

	if truthy(payload["success"]) && truthy(payload["data"]) {
		var data struct {
			Summary map[string]interface{} `json:"summary"`
			Results interface{}            `json:"results"`
		}
		if err := json.Unmarshal(payload["data"], &data); err != nil {
			return geekwala.Response{}, parseError("Invalid API response: data is not an object", err)
		}
		if _, ok := data.Summary["total_packages"].(float64); !ok {
			return geekwala.Response{}, parseError("Invalid API response: missing or invalid summary", nil)
		}
		if _, ok := data.Results.([]interface{}); !ok {
			return geekwala.Response{}, parseError("Invalid API response: results is not an array", nil)
		}
	}

	var resp geekwala.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return geekwala.Response{}, parseError("Invalid API response: "+err.Error(), err)
	}
	return resp, nil
}

func parseError(msg string, err error) *APIError {
	return &APIError{Type: ParseError, Message: msg, Err: err}
}

// truthy mirrors the loose truthiness of a decoded JSON value.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	}
	return true
}

func decodeLenient(body []byte, v interface{}) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	return json.Unmarshal(body, v)
}
