package grocery

import "testing"

func TestCategorizeExactMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"milk", "dairy"},
		{"chicken", "meat"},
		{"apple", "fruit"},
		{"broccoli", "vegetables"},
		{"paper towels", "utility"},
	}
	for _, tt := range tests {
		got := Categorize(tt.input)
		if got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCategorizeSubstringMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"chicken breast", "meat"},
		{"boneless chicken thighs", "meat"},
		{"organic baby spinach", "vegetables"},
		{"greek yogurt cups", "dairy"},
		{"frozen blueberries", "fruit"},
		{"dish soap refill", "utility"},
	}
	for _, tt := range tests {
		got := Categorize(tt.input)
		if got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCategorizeCaseAndWhitespace(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"MILK", "dairy"},
		{"  milk  ", "dairy"},
		{"Paper   Towels", "utility"},
	}
	for _, tt := range tests {
		got := Categorize(tt.input)
		if got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCategorizeUnknownItem(t *testing.T) {
	for _, input := range []string{"", "widget", "xyz123"} {
		if got := Categorize(input); got != "other" {
			t.Errorf("Categorize(%q) = %q, want %q", input, got, "other")
		}
	}
}
