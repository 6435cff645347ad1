package structured

import (
	"reflect"
	"testing"
)

func TestValidateExtractsFencedJSON(t *testing.T) {
	t.Parallel()

	out := Validate("```json\n{\"a\":1}\n```", map[string]interface{}{"type": "object"})

	if !out.Valid {
		t.Fatalf("expected valid outcome, got parse error %q", out.ParseError)
	}
	want := map[string]interface{}{"a": float64(1)}
	if !reflect.DeepEqual(out.Data, want) {
		t.Fatalf("unexpected data: %#v", out.Data)
	}
}

func TestValidateGarbageNeverThrows(t *testing.T) {
	t.Parallel()

	out := Validate("not json", map[string]interface{}{"type": "object"})

	if out.Valid {
		t.Fatal("expected invalid outcome for garbage input")
	}
	if out.ParseError == "" {
		t.Fatal("expected parse error to be populated")
	}
	data, ok := out.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected error-shaped data, got %#v", out.Data)
	}
	if data["error"] != "not json" {
		t.Fatalf("expected raw text inside error field, got %#v", data["error"])
	}
}

func TestValidateStrategies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		schema map[string]interface{}
		valid  bool
		want   interface{}
	}{
		{
			name:  "direct object",
			input: `{"ok":true}`,
			valid: true,
			want:  map[string]interface{}{"ok": true},
		},
		{
			name:  "json embedded in prose",
			input: `Sure! Here is the result: {"total": 3} as requested.`,
			valid: true,
			want:  map[string]interface{}{"total": float64(3)},
		},
		{
			name:  "array embedded in prose",
			input: `The items are [1, 2, 3] in order.`,
			valid: true,
			want:  []interface{}{float64(1), float64(2), float64(3)},
		},
		{
			name:  "braces inside string literals",
			input: `prefix {"text": "looks like {nested}", "n": 1} suffix`,
			valid: true,
			want:  map[string]interface{}{"text": "looks like {nested}", "n": float64(1)},
		},
		{
			name:  "fenced without language tag",
			input: "```\n[\"x\"]\n```",
			valid: true,
			want:  []interface{}{"x"},
		},
		{
			name:  "repairable single quotes",
			input: `{'name': 'John'}`,
			valid: true,
			want:  map[string]interface{}{"name": "John"},
		},
		{
			name:   "type mismatch is informational",
			input:  `"just a string"`,
			schema: map[string]interface{}{"type": "object"},
			valid:  false,
			want:   "just a string",
		},
		{
			name:   "integer accepts whole numbers",
			input:  `42`,
			schema: map[string]interface{}{"type": "integer"},
			valid:  true,
			want:   float64(42),
		},
		{
			name:   "integer rejects fractions",
			input:  `4.2`,
			schema: map[string]interface{}{"type": "integer"},
			valid:  false,
			want:   float64(4.2),
		},
		{
			name:  "no schema accepts any json",
			input: `[{"k":"v"}]`,
			valid: true,
			want:  []interface{}{map[string]interface{}{"k": "v"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := Validate(tt.input, tt.schema)
			if out.Valid != tt.valid {
				t.Fatalf("valid = %v, want %v (parseError=%q)", out.Valid, tt.valid, out.ParseError)
			}
			if !reflect.DeepEqual(out.Data, tt.want) {
				t.Fatalf("data = %#v, want %#v", out.Data, tt.want)
			}
		})
	}
}

func TestStripFence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"no tag", "```\n{}\n```", "{}"},
		{"not fenced", `{"a":1}`, `{"a":1}`},
		{"fence chars mid-text", "use ``` for fences", "use ``` for fences"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := StripFence(tt.input); got != tt.want {
				t.Fatalf("StripFence(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFirstBalancedUnclosed(t *testing.T) {
	t.Parallel()

	if _, ok := firstBalanced(`{"never": "closed"`); ok {
		t.Fatal("expected no balanced substring for unclosed object")
	}
	if _, ok := firstBalanced("no braces at all"); ok {
		t.Fatal("expected no balanced substring without delimiters")
	}
}
