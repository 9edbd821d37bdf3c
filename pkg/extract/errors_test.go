package extract

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		keys      []string
		wantErr   error
		wantIndex int
		wantMsg   string
	}{
		{
			name:      "blank content",
			content:   "\t\n",
			keys:      []string{"Name"},
			wantErr:   ErrEmptyContent,
			wantIndex: -1,
			wantMsg:   "content cannot be empty",
		},
		{
			name:      "no keys",
			content:   "Name Joe",
			wantErr:   ErrEmptyKeySet,
			wantIndex: -1,
			wantMsg:   "keys cannot be empty",
		},
		{
			name:      "blank key",
			content:   "Name Joe",
			keys:      []string{"Name", " "},
			wantErr:   ErrBlankKey,
			wantIndex: 1,
			wantMsg:   "keys cannot contain blank entries (index 1)",
		},
		{
			name:      "duplicate key",
			content:   "Name Joe",
			keys:      []string{"Name", "Phone", "Name"},
			wantErr:   ErrDuplicateKey,
			wantIndex: 2,
			wantMsg:   `duplicate key "Name" (index 2)`,
		},
		{
			name:      "blank reported before duplicate",
			content:   "Name Joe",
			keys:      []string{"Name", "Name", ""},
			wantErr:   ErrBlankKey,
			wantIndex: 2,
			wantMsg:   "keys cannot contain blank entries (index 2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.content, tt.keys)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want *ValidationError", err)
			}
			if verr.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", verr.Index, tt.wantIndex)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate("First Name: Joe", []string{"First Name:", "Last Name:"}); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidateKeys_CaseDistinct(t *testing.T) {
	if err := ValidateKeys([]string{"Name", "name"}); err != nil {
		t.Errorf("ValidateKeys() error = %v, keys differing in case are distinct", err)
	}
}
