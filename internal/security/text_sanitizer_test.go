package security

import "testing"

// TestTextSanitizer_StripsTags はHTMLタグがすべて除去されることを検証する。
func TestTextSanitizer_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Eiffel Tower", "Eiffel Tower"},
		{"script tag", `<script>alert("x")</script>Eiffel Tower`, "Eiffel Tower"},
		{"decoration tags", "<b>A tower</b> in <i>Paris</i>", "A tower in Paris"},
		{"img onerror", `<img src=x onerror=alert(1)>Paris`, "Paris"},
		{"empty", "", ""},
		{"surrounding whitespace", "  Paris  ", "Paris"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestTextSanitizer_Idempotent は同一入力に対し常に同一出力となることを検証する。
func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	input := `<a href="https://example.com">A tower in Paris</a>`
	first := s.Sanitize(input)
	second := s.Sanitize(first)
	if first != second {
		t.Errorf("Sanitize is not idempotent: first=%q second=%q", first, second)
	}
}
