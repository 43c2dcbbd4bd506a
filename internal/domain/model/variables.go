package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// TemplateVariable is one named substitution value.
type TemplateVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TemplateVariables is an ordered set of substitution values.
//
// Order matters: chat templates without a fixed slot layout fill positional
// parameters in declaration order. JSON objects decode preserving key order;
// JSON arrays of {name,value} are accepted as well.
type TemplateVariables []TemplateVariable

// Get returns the value for name and whether it was present.
func (v TemplateVariables) Get(name string) (string, bool) {
	for _, kv := range v {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return "", false
}

// With returns v with name set to value. An existing entry keeps its position.
func (v TemplateVariables) With(name, value string) TemplateVariables {
	for i := range v {
		if v[i].Name == name {
			v[i].Value = value
			return v
		}
	}
	return append(v, TemplateVariable{Name: name, Value: value})
}

// Map flattens the variables for lookup-only callers.
func (v TemplateVariables) Map() map[string]string {
	out := make(map[string]string, len(v))
	for _, kv := range v {
		out[kv.Name] = kv.Value
	}
	return out
}

// MarshalJSON encodes the variables as a JSON object in declaration order.
func (v TemplateVariables) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object (order preserving) or an array of {name,value}.
func (v *TemplateVariables) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = nil
		return nil
	}

	if trimmed[0] == '[' {
		var list []TemplateVariable
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("decode template variables: %w", err)
		}
		*v = TemplateVariables(list)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode template variables: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("template variables must be a JSON object or array")
	}

	var out TemplateVariables
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode template variable name: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected template variable key %v", keyTok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode template variable %q: %w", key, err)
		}
		out = out.With(key, stringify(raw))
	}
	*v = out
	return nil
}

// Value implements driver.Valuer so the variables persist as JSONB.
func (v TemplateVariables) Value() (driver.Value, error) {
	b, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB columns.
func (v *TemplateVariables) Scan(src any) error {
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		return v.UnmarshalJSON(t)
	case string:
		return v.UnmarshalJSON([]byte(t))
	default:
		return fmt.Errorf("unsupported template variables source %T", src)
	}
}
