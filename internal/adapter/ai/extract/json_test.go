package extract

import "testing"

func TestObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantOK  bool
		wantKey string
	}{
		{
			name:    "plain JSON",
			raw:     `{"test_cases": []}`,
			wantOK:  true,
			wantKey: "test_cases",
		},
		{
			name:    "fenced JSON",
			raw:     "```json\n{\"test_cases\": []}\n```",
			wantOK:  true,
			wantKey: "test_cases",
		},
		{
			name:    "fenced without language tag",
			raw:     "```\n{\"summary\": \"ok\"}\n```",
			wantOK:  true,
			wantKey: "summary",
		},
		{
			name:    "JSON embedded in prose",
			raw:     "Here is the result you asked for:\n{\"test_cases\": []}\nHope that helps!",
			wantOK:  true,
			wantKey: "test_cases",
		},
		{
			name:   "not JSON at all",
			raw:    "not json at all",
			wantOK: false,
		},
		{
			name:   "unbalanced braces",
			raw:    "{\"test_cases\": [",
			wantOK: false,
		},
		{
			name:   "empty string",
			raw:    "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := Object(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("Object() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK {
				if _, present := obj[tt.wantKey]; !present {
					t.Errorf("expected key %q in extracted object", tt.wantKey)
				}
			}
		})
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("abcdef", 3); got != "abc" {
		t.Errorf("Preview = %q", got)
	}
	if got := Preview("ab", 3); got != "ab" {
		t.Errorf("Preview = %q", got)
	}
}
