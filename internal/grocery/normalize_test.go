package grocery

import (
	"reflect"
	"testing"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Vegetable", "vegetables"},
		{" vegetable ", "vegetables"},
		{"VEGETABLES", "vegetables"},
		{"", "other"},
		{"   ", "other"},
		{"Frozen   Food", "frozen food"},
		{"\tDairy\n", "dairy"},
		{"meat", "meat"},
	}
	for _, tt := range tests {
		got := NormalizeCategory(tt.input)
		if got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeCategoryIdempotent(t *testing.T) {
	inputs := []string{"Vegetable", "  Snack  Food ", "", "MEAT", "other", "fruit"}
	for _, in := range inputs {
		once := NormalizeCategory(in)
		twice := NormalizeCategory(once)
		if once != twice {
			t.Errorf("NormalizeCategory not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestMergeCategories(t *testing.T) {
	got := MergeCategories([]string{"Vegetable", "Snacks", "snacks "}, []string{"Pet  Food", "MEAT"})
	want := []string{"dairy", "fruit", "meat", "other", "pet food", "snacks", "utility", "vegetables"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeCategories = %v, want %v", got, want)
	}
}

func TestMergeCategoriesBaseOnly(t *testing.T) {
	got := MergeCategories()
	if len(got) != len(BaseCategories) {
		t.Fatalf("len = %d, want %d", len(got), len(BaseCategories))
	}
}

func TestGroupByLetter(t *testing.T) {
	names := []string{"milk", "Apples", "2% milk", "avocado", "", "Bread"}
	groups := GroupByLetter(names, func(s string) string { return s })

	var letters []string
	for _, g := range groups {
		letters = append(letters, g.Letter)
	}
	if want := []string{"A", "B", "M", "#"}; !reflect.DeepEqual(letters, want) {
		t.Fatalf("letters = %v, want %v", letters, want)
	}
	if want := []string{"Apples", "avocado"}; !reflect.DeepEqual(groups[0].Items, want) {
		t.Errorf("A group = %v, want %v", groups[0].Items, want)
	}
	if len(groups[3].Items) != 2 {
		t.Errorf("# group = %v, want 2 items", groups[3].Items)
	}
}
