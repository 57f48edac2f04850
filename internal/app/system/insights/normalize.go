package insights

import (
	"bytes"
	"encoding/json"

	"github.com/dalemusser/teampulse/internal/app/system/htmlsanitize"
)

// MaxInsights caps how many lines are kept from one response.
const MaxInsights = 10

// Keys checked, in order, when the webhook answers with an object.
var objectKeys = []string{"insights", "output", "text", "message"}

// Normalize turns a webhook body into plain-text insight lines. It accepts
// an object carrying one of objectKeys, an array of strings or objects, a
// JSON string, or bare text.
func Normalize(body []byte) []string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return limit(htmlsanitize.Lines(string(body)))
	}
	return limit(fromValue(v))
}

func fromValue(v any) []string {
	switch t := v.(type) {
	case string:
		return htmlsanitize.Lines(t)
	case map[string]any:
		for _, k := range objectKeys {
			if inner, ok := t[k]; ok {
				if out := fromValue(inner); len(out) > 0 {
					return out
				}
			}
		}
		return nil
	case []any:
		var out []string
		for _, el := range t {
			switch e := el.(type) {
			case string:
				if s := htmlsanitize.Text(e); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				// Workflow tools often wrap the payload as [{"output": ...}].
				if len(out) == 0 {
					return fromValue(e)
				}
			}
		}
		return out
	default:
		return nil
	}
}

func limit(lines []string) []string {
	if len(lines) > MaxInsights {
		return lines[:MaxInsights]
	}
	return lines
}
