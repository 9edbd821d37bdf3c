package profile

import (
	"strings"
	"testing"
)

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*FormProfile)
		wantFields []string
	}{
		{name: "valid", modify: func(*FormProfile) {}},
		{
			name:       "missing metadata",
			modify:     func(p *FormProfile) { p.Name, p.ProfileID, p.Version = "", "", "" },
			wantFields: []string{"name", "profile_id", "version"},
		},
		{
			name:       "bad profile id and version",
			modify:     func(p *FormProfile) { p.ProfileID, p.Version = "Bad_ID", "1.0" },
			wantFields: []string{"profile_id", "version"},
		},
		{
			name:       "blank key",
			modify:     func(p *FormProfile) { p.Keys = []string{"Name:", ""} },
			wantFields: []string{"keys[1]"},
		},
		{
			name:       "empty keys",
			modify:     func(p *FormProfile) { p.Keys = nil },
			wantFields: []string{"keys"},
		},
		{
			name: "indicator problems",
			modify: func(p *FormProfile) {
				p.Detection.RequiredIndicators = []Indicator{{Pattern: "(", Weight: 0}}
				p.Detection.NegativeIndicators = []Indicator{{Pattern: "x", Weight: 5}}
			},
			wantFields: []string{
				"detection.required_indicators[0].pattern",
				"detection.required_indicators[0].weight",
				"detection.negative_indicators[0].weight",
			},
		},
		{
			name:       "no required indicators",
			modify:     func(p *FormProfile) { p.Detection.RequiredIndicators = nil },
			wantFields: []string{"detection.required_indicators"},
		},
		{
			name:       "html mode",
			modify:     func(p *FormProfile) { p.Options.HTMLMode = "rtf" },
			wantFields: []string{"options.html_mode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.modify(p)

			errs := ValidateSchema(p)
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("ValidateSchema() = %v, want %d errors", errs, len(tt.wantFields))
			}
			for i, field := range tt.wantFields {
				if errs[i].Field != field {
					t.Errorf("errs[%d].Field = %q, want %q", i, errs[i].Field, field)
				}
			}
		})
	}
}

func TestFieldErrorsString(t *testing.T) {
	if got := (FieldErrors{}).Error(); got != "no errors" {
		t.Errorf("Error() = %q, want %q", got, "no errors")
	}

	one := FieldErrors{{Field: "version", Message: "bad", Value: "1"}}
	if got := one.Error(); got != "version: bad (got: 1)" {
		t.Errorf("Error() = %q", got)
	}

	two := FieldErrors{{Field: "name", Message: "required"}, {Field: "keys", Message: "empty"}}
	got := two.Error()
	if !strings.HasPrefix(got, "2 validation errors:") || !strings.Contains(got, "keys: empty") {
		t.Errorf("Error() = %q", got)
	}
}
