package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Keys names the payload fields holding the percentage and the status text.
//
// Both keys accept dot notation for nested objects, e.g. "data.progress".
type Keys struct {
	Percentage string
	Status     string
}

// Payload is a decoded status response for one job.
type Payload struct {
	// Reported is true when the percentage field is present and truthy.
	// Absent, null, 0, false and "" all leave Reported false.
	Reported bool

	// Percentage is the numeric percentage. Only meaningful when Reported.
	Percentage float64

	// Text is the percentage as it should be displayed, without the "%".
	// Numbers render in their shortest form ("37", "37.5"); numeric strings
	// are kept verbatim.
	Text string

	// Status is the status text, or nil when the field is absent.
	// A null status clears the label; objects and arrays render the way a
	// browser stringifies them.
	Status *string
}

// Decode parses a JSON response body into a [Payload] using the given keys.
//
// The body must be a JSON object. A percentage that is neither a number,
// a numeric string nor a falsy value is reported as an error so the poll
// counts as failed rather than writing garbage into the page.
func Decode(body []byte, keys Keys) (Payload, error) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return Payload{}, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if _, ok := data.(map[string]interface{}); !ok {
		return Payload{}, errors.New("payload must be a JSON object")
	}

	var p Payload

	if raw, ok := lookupPath(data, splitPath(keys.Percentage)); ok {
		if err := p.setPercentage(raw); err != nil {
			return Payload{}, fmt.Errorf("field %q: %w", keys.Percentage, err)
		}
	}

	if raw, ok := lookupPath(data, splitPath(keys.Status)); ok {
		s := displayText(raw)
		p.Status = &s
	}

	return p, nil
}

// setPercentage applies truthiness rules to the raw percentage value.
func (p *Payload) setPercentage(raw interface{}) error {
	switch v := raw.(type) {
	case nil:
		return nil
	case bool:
		if !v {
			return nil
		}
		return errors.New("percentage must be numeric, got true")
	case float64:
		if v == 0 {
			return nil
		}
		p.Reported = true
		p.Percentage = v
		p.Text = strconv.FormatFloat(v, 'f', -1, 64)
		return nil
	case string:
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("percentage must be numeric, got %q", v)
		}
		// a non-empty string is truthy even when it reads "0"
		p.Reported = true
		p.Percentage = f
		p.Text = v
		return nil
	default:
		return fmt.Errorf("percentage must be numeric, got %T", raw)
	}
}

// splitPath splits a dot-notation key. An empty key yields no parts.
func splitPath(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ".")
}

// lookupPath walks nested objects following parts.
// Returns false when any segment is missing or not an object.
func lookupPath(data interface{}, parts []string) (interface{}, bool) {
	if len(parts) == 0 {
		return nil, false
	}

	current := data
	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// displayText renders a JSON value as label text, matching what setting
// textContent in a browser shows: null is empty, an object is
// "[object Object]" and an array joins its elements with commas.
func displayText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []interface{}:
		parts := make([]string, len(t))
		for i, elem := range t {
			parts[i] = displayText(elem)
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}
