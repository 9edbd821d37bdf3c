package extract

import (
	"testing"
)

func TestLocate(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		keys      []string
		searchKey string
		want      int
	}{
		{
			name:      "plain key",
			content:   "First Name: Joe",
			keys:      []string{"First Name:"},
			searchKey: "First Name:",
			want:      0,
		},
		{
			name:      "key not present",
			content:   "Joe",
			keys:      []string{"First Name:"},
			searchKey: "First Name:",
			want:      -1,
		},
		{
			name:      "case must match",
			content:   "FIRst NaMe: Joe",
			keys:      []string{"First Name:"},
			searchKey: "First Name:",
			want:      -1,
		},
		{
			name:      "nested key skips occurrence inside longer key",
			content:   "Zip Name 00000 Name Joe",
			keys:      []string{"Name", "Zip Name"},
			searchKey: "Name",
			want:      15,
		},
		{
			name:      "longer key resolves by plain search",
			content:   "Zip Name 00000 Name Joe",
			keys:      []string{"Name", "Zip Name"},
			searchKey: "Zip Name",
			want:      0,
		},
		{
			name:      "nested key only inside longer keys",
			content:   "Zip Name 00000",
			keys:      []string{"Name", "Zip Name"},
			searchKey: "Name",
			want:      -1,
		},
		{
			name:      "quadruple nesting middle level",
			content:   "Address City Zip Name a City Zip Name c Zip Name z Name n",
			keys:      []string{"Name", "Zip Name", "City Zip Name", "Address City Zip Name"},
			searchKey: "City Zip Name",
			want:      24,
		},
		{
			name:      "quadruple nesting innermost level",
			content:   "Address City Zip Name a City Zip Name c Zip Name z Name n",
			keys:      []string{"Name", "Zip Name", "City Zip Name", "Address City Zip Name"},
			searchKey: "Name",
			want:      51,
		},
		{
			name:      "upper-case text is not mistaken for a key",
			content:   "ZIP NAME 1 Zip Name 2 Name 3",
			keys:      []string{"Name", "Zip Name"},
			searchKey: "Name",
			want:      22,
		},
		{
			name:      "caseless nested key",
			content:   "*Name* Joe * star",
			keys:      []string{"*", "*Name*"},
			searchKey: "*",
			want:      11,
		},
		{
			name:      "search key missing from key set",
			content:   "Zip Name 1 Name 2",
			keys:      []string{"Zip Name"},
			searchKey: "Name",
			want:      11,
		},
		{
			name:      "empty search key",
			content:   "Name",
			keys:      []string{"Name"},
			searchKey: "",
			want:      -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Locate(tt.content, tt.keys, tt.searchKey)
			if got != tt.want {
				t.Errorf("Locate(%q, %q) = %d, want %d", tt.content, tt.searchKey, got, tt.want)
			}
		})
	}
}

func TestLocate_DoesNotModifyKeys(t *testing.T) {
	keys := make([]string, 1, 4)
	keys[0] = "Zip Name"

	Locate("Zip Name 1 Name 2", keys, "Name")

	if len(keys) != 1 || keys[:2][1] != "" {
		t.Errorf("Locate() modified the caller's key slice: %q", keys[:2])
	}
}

func TestKeySpans(t *testing.T) {
	content := "Email Name e Phone p Name n Zip Name z"
	keys := []string{"Email Name", "Name", "Phone", "Zip Name"}

	spans := keySpans(content, keys)

	want := []keySpan{
		{Key: "Email Name", Start: 0, End: 10},
		{Key: "Phone", Start: 13, End: 18},
		{Key: "Name", Start: 21, End: 25},
		{Key: "Zip Name", Start: 28, End: 36},
	}
	if len(spans) != len(want) {
		t.Fatalf("keySpans() = %+v, want %+v", spans, want)
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Errorf("keySpans()[%d] = %+v, want %+v", i, spans[i], want[i])
		}
	}
}

func TestLongestFirst(t *testing.T) {
	keys := []string{"Name", "Zip", "First Name", "City", "Zip Name"}

	got := longestFirst(keys)

	want := []string{"First Name", "Zip Name", "Name", "City", "Zip"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("longestFirst()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if keys[0] != "Name" {
		t.Error("longestFirst() reordered its input")
	}
}
