package jsonutil

import "testing"

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  "{\"a\": 1}",
		},
		{
			name:  "bare fence",
			input: "```\n[1, 2]\n```",
			want:  "[1, 2]",
		},
		{
			name:  "no fence",
			input: "{\"a\": 1}",
			want:  "{\"a\": 1}",
		},
		{
			name:  "leading whitespace",
			input: "  \n```json\n{}\n```  ",
			want:  "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripMarkdownFences(tt.input)
			if got != tt.want {
				t.Errorf("StripMarkdownFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON("Here are the tiers:\n[{\"id\": \"cheap\"}]\nHope that helps!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[{\"id\": \"cheap\"}]" {
		t.Errorf("unexpected extraction: %q", got)
	}

	if _, err := ExtractJSON("no json here"); err == nil {
		t.Error("expected error for text with no JSON content")
	}
}

func TestParseJSON_TierList(t *testing.T) {
	type tier struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	raw := "```json\n[{\"id\": \"premium\", \"title\": \"Cao cấp\"}]\n```"
	tiers, err := ParseJSON[[]tier](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tiers) != 1 || tiers[0].ID != "premium" {
		t.Errorf("unexpected result: %+v", tiers)
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	type obj struct{}
	if _, err := ParseJSON[obj]("{not valid json"); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
