package extract

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		content string
		keys    []string
		want    string
	}{
		{
			name:    "keys on one line are split",
			content: "First Name: Joe Last Name: Smith",
			keys:    []string{"First Name:", "Last Name:"},
			want:    "First Name: Joe\nLast Name: Smith",
		},
		{
			name:    "existing line breaks collapse to spaces",
			content: "First Name:\r\nJoe\rLast Name:\nSmith",
			keys:    []string{"First Name:", "Last Name:"},
			want:    "First Name: Joe\nLast Name: Smith",
		},
		{
			name:    "whitespace around breaks is absorbed",
			content: "Email Name \n example@example.com \n Phone \n 5551231234",
			keys:    []string{"Email Name", "Phone"},
			want:    "Email Name example@example.com\nPhone 5551231234",
		},
		{
			name:    "preamble is separated from the first key",
			content: "You have a new submission. First Name: Joe",
			keys:    []string{"First Name:"},
			want:    "You have a new submission.\nFirst Name: Joe",
		},
		{
			name:    "repeated key gets its own line",
			content: "First Name: Joe First Name: Tom",
			keys:    []string{"First Name:"},
			want:    "First Name: Joe\nFirst Name: Tom",
		},
		{
			name:    "nested keys",
			content: "Email Name example@example.com Phone 5555551234 Name Joe Moceri Zip Name 00000",
			keys:    []string{"Email Name", "Name", "Phone", "Zip Name"},
			want:    "Email Name example@example.com\nPhone 5555551234\nName Joe Moceri\nZip Name 00000",
		},
		{
			name:    "key absent from content",
			content: "Joe",
			keys:    []string{"First Name:"},
			want:    "Joe",
		},
		{
			name:    "key repeated three times",
			content: "First Name: Joe First Name: Tom First Name: Ann",
			keys:    []string{"First Name:"},
			want:    "First Name: Joe\nFirst Name: Tom\nFirst Name: Ann",
		},
		{
			name:    "interleaved repeats",
			content: "Name: a Email: x Name: b Email: y",
			keys:    []string{"Name:", "Email:"},
			want:    "Name: a\nEmail: x\nName: b\nEmail: y",
		},
		{
			name:    "no break that would complete a longer key",
			content: "WorkEmail x",
			keys:    []string{"Work Email", "Email"},
			want:    "WorkEmail x",
		},
		{
			name:    "no break that would close a gap inside a longer key",
			content: "e0",
			keys:    []string{"e 0", "0"},
			want:    "e0",
		},
		{
			name:    "unicode line separator",
			content: "First Name:\u2028Joe",
			keys:    []string{"First Name:"},
			want:    "First Name: Joe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.content, tt.keys)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	tests := []struct {
		content string
		keys    []string
	}{
		{
			content: "First Name:   Joe   Last Name:  Smith",
			keys:    []string{"First Name:", "Last Name:"},
		},
		{
			content: "Intro text\r\n\r\nFirst Name:Joe\tLast Name:\tSmith",
			keys:    []string{"First Name:", "Last Name:"},
		},
		{
			content: "Email Name e@x.com Phone 555 Name Joe Zip Name 0 City Zip Name c Address City Zip Name a",
			keys:    []string{"Email Name", "Name", "Phone", "Zip Name", "City Zip Name", "Address City Zip Name"},
		},
		{
			content: "From: A <a@b.c>\nSubject: Hi\n\nMessage Body:\nText\n\n-- \nfooter",
			keys:    []string{"From:", "Subject:", "Message Body:", "--"},
		},
		{
			content: "Name: a Email: x Name: b Email: y Name: c",
			keys:    []string{"Name:", "Email:"},
		},
		{
			content: "WorkEmail x",
			keys:    []string{"Work Email", "Email"},
		},
		{
			content: "x  Name y",
			keys:    []string{"x Name", "Name"},
		},
	}

	for _, tt := range tests {
		once, err := Normalize(tt.content, tt.keys)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		twice, err := Normalize(once, tt.keys)
		if err != nil {
			t.Fatalf("Normalize() second pass error = %v", err)
		}
		if once != twice {
			t.Errorf("Normalize() not idempotent:\n once = %q\ntwice = %q", once, twice)
		}
	}
}

func TestNormalize_Validation(t *testing.T) {
	_, err := Normalize("  ", []string{"Name"})
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("Normalize() error = %v, want ErrEmptyContent", err)
	}

	_, err = Normalize("Name Joe", []string{"Name", "Name"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Normalize() error = %v, want ErrDuplicateKey", err)
	}
}

func TestCollapseLineBreaks(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "a\r\nb", want: "a b"},
		{in: "a\nb", want: "a b"},
		{in: "a\rb", want: "a b"},
		{in: "a \r\n\r\n \t b", want: "a b"},
		{in: "a    b", want: "a    b"},
		{in: "\nlead", want: " lead"},
	}

	for _, tt := range tests {
		if got := collapseLineBreaks(tt.in); got != tt.want {
			t.Errorf("collapseLineBreaks(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinsKey(t *testing.T) {
	tests := []struct {
		head string
		tail string
		keys []string
		want bool
	}{
		{head: "Work", tail: "Email x", keys: []string{"Work Email", "Email"}, want: true},
		{head: "e", tail: "0", keys: []string{"e 0", "0"}, want: true},
		{head: "Joe", tail: "Last Name: Smith", keys: []string{"First Name:", "Last Name:"}, want: false},
		{head: "Name", tail: "Name", keys: []string{"Name"}, want: false},
	}

	for _, tt := range tests {
		if got := joinsKey(tt.head, tt.tail, tt.keys); got != tt.want {
			t.Errorf("joinsKey(%q, %q) = %v, want %v", tt.head, tt.tail, got, tt.want)
		}
	}
}

func TestBreakBefore(t *testing.T) {
	tests := []struct {
		name    string
		content string
		pos     int
		want    string
	}{
		{name: "start of content", content: "Name Joe", pos: 0, want: "Name Joe"},
		{name: "only whitespace before", content: "  Name Joe", pos: 2, want: "  Name Joe"},
		{name: "start of line", content: "a\nName Joe", pos: 2, want: "a\nName Joe"},
		{name: "mid line", content: "a  Name Joe", pos: 3, want: "a\nName Joe"},
		{name: "glued to previous text", content: "a:Name Joe", pos: 2, want: "a:\nName Joe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := breakBefore(tt.content, tt.pos); got != tt.want {
				t.Errorf("breakBefore(%q, %d) = %q, want %q", tt.content, tt.pos, got, tt.want)
			}
		})
	}
}
