package jsonpath

import "testing"

func TestEvalString(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		path   string
		want   string
		wantOK bool
	}{
		{"string", `{"name":"John"}`, "$.name", "John", true},
		{"number", `{"age":25}`, "$.age", "25", true},
		{"bool", `{"ok":true}`, "$.ok", "true", true},
		{"object", `{"user":{"name":"Jane"}}`, "$.user", `{"name":"Jane"}`, true},
		{"empty string", `{"name":""}`, "$.name", "", true},
		{"null", `{"name":null}`, "$.name", "", true},
		{"no match", `{"name":"John"}`, "$.missing", "", true},
		{"several matches", `{"a":[{"id":1},{"id":2}]}`, "$.a[*].id", "[1,2]", true},
		{"invalid json", `invalid json`, "$.name", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EvalString(tt.src, tt.path)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("EvalString(%q, %q) = %q, %v; want %q, %v", tt.src, tt.path, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
