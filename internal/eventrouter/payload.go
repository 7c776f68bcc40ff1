// internal/eventrouter/payload.go
package eventrouter

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Payload is a decoded event body. Its shape is event specific; lookups take
// dotted paths such as "studio._id" and return zero values when absent.
type Payload map[string]interface{}

func decodePayload(raw json.RawMessage) (Payload, error) {
	p := Payload{}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p Payload) lookup(path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(p)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// String renders scalar values as strings.
func (p Payload) String(path string) string {
	v, ok := p.lookup(path)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func (p Payload) StringOr(path, fallback string) string {
	if s := p.String(path); s != "" {
		return s
	}
	return fallback
}

// First returns the first non-empty value among paths.
func (p Payload) First(paths ...string) string {
	for _, path := range paths {
		if s := p.String(path); s != "" {
			return s
		}
	}
	return ""
}

func (p Payload) Bool(path string) bool {
	v, _ := p.lookup(path)
	b, _ := v.(bool)
	return b
}

// Amount formats a money value, falling back to the raw string.
func (p Payload) Amount(path string) string {
	v, ok := p.lookup(path)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case float64:
		return "$" + strconv.FormatFloat(t, 'f', 2, 64)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return "$" + strconv.FormatFloat(f, 'f', 2, 64)
		}
		return t
	}
	return ""
}

// Time parses an RFC 3339 value; the zero time means absent or unparseable.
func (p Payload) Time(paths ...string) time.Time {
	for _, path := range paths {
		if s := p.String(path); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// StudioID accepts the studio as a document, a bare id, or a flat field.
func (p Payload) StudioID() string {
	return p.First("studio._id", "studio.id", "studioId", "studio")
}
