package structured

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Extract pulls the first parseable JSON value out of model text. The second
// return value is empty on success and holds the parse failure reason
// otherwise. Strategies are pure and tried in order.
func Extract(raw string) (interface{}, string) {
	text := StripFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, "empty model output"
	}

	var value interface{}
	if err := json.Unmarshal([]byte(text), &value); err == nil {
		return value, ""
	}

	if candidate, ok := firstBalanced(text); ok {
		if err := json.Unmarshal([]byte(candidate), &value); err == nil {
			return value, ""
		}
	}

	// Last resort: repair common model malformations (single quotes,
	// trailing commas, unquoted keys) and re-parse. Only attempted when the
	// text has a structural candidate; plain prose must stay a parse failure
	// rather than get quoted into a JSON string.
	if strings.ContainsAny(text, "{[") {
		if repaired, err := jsonrepair.JSONRepair(text); err == nil {
			if err := json.Unmarshal([]byte(repaired), &value); err == nil {
				return value, ""
			}
		}
	}

	return nil, "no parseable JSON found in model output"
}

// StripFence removes a single wrapping fenced code block (triple backticks,
// optional language tag). Text that is not fence-wrapped passes through
// unchanged.
func StripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	rest := text[3:]
	// Drop the optional language tag on the opening line
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		// Opening fence with no newline: nothing wrapped
		return text
	}

	rest = strings.TrimRight(rest, " \t\n")
	if strings.HasSuffix(rest, "```") {
		rest = rest[:len(rest)-3]
	}

	return strings.TrimSpace(rest)
}

// firstBalanced scans for the first balanced {...} or [...] substring,
// tracking string literals and escapes so braces inside strings do not
// confuse the count.
func firstBalanced(text string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if text[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
