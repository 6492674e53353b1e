package llm

import "testing"

func TestParseFieldOutput(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		content string
		want    string
	}{
		{
			name:    "fenced json block",
			field:   "TITLE",
			content: "Here is the result:\n```json\n{\n\t\"TITLE\": \"Deep Learning for Fish Counting\"\n}\n```\n",
			want:    "Deep Learning for Fish Counting",
		},
		{
			name:    "bare json object",
			field:   "DOI",
			content: `{"DOI": "10.1234/fish.2023"}`,
			want:    "10.1234/fish.2023",
		},
		{
			name:    "missing key",
			field:   "TITLE",
			content: `{"HEADLINE": "wrong key"}`,
			want:    "ERROR",
		},
		{
			name:    "invalid json",
			field:   "TITLE",
			content: "```json\nnot json at all\n```",
			want:    "ERROR",
		},
		{
			name:    "no json in answer",
			field:   "TITLE",
			content: "I cannot find a title.",
			want:    "ERROR",
		},
		{
			name:    "structured value gets serialized",
			field:   "AUTHOR_AFFILIATION",
			content: `{"AUTHOR_AFFILIATION": [{"AUTHOR":"Kim Minsu","AFFILIATION":"X"}]}`,
			want:    `[{"AFFILIATION":"X","AUTHOR":"Kim Minsu"}]`,
		},
		{
			name:    "explicit NO_TEXT sentinel passes through",
			field:   "VOLUME",
			content: `{"VOLUME": "NO_TEXT"}`,
			want:    "NO_TEXT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseFieldOutput(tt.field, tt.content); got != tt.want {
				t.Errorf("ParseFieldOutput(%s) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}
