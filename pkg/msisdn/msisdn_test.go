package msisdn

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"08012345678", "08012345678", true},
		{"2348012345678", "08012345678", true},
		{"+2348012345678", "08012345678", true},
		{"8012345678", "08012345678", true},
		{"0801 234 5678", "08012345678", true},
		{" +234 801-234-5678 ", "08012345678", true},
		{"09087654321", "09087654321", true},
		{"07061234567", "07061234567", true},
		{"06012345678", "", false},
		{"0801234567", "", false},
		{"080123456789", "", false},
		{"+1 415 555 0100", "", false},
		{"abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalize_EquivalentFormsAgree(t *testing.T) {
	forms := []string{"08012345678", "2348012345678", "+2348012345678"}

	first, _ := Normalize(forms[0])
	for _, f := range forms[1:] {
		got, ok := Normalize(f)
		if !ok || got != first {
			t.Errorf("Normalize(%q) = %q, want %q", f, got, first)
		}
	}
}

func TestInternational(t *testing.T) {
	if got := International("08012345678"); got != "2348012345678" {
		t.Errorf("International() = %s, want 2348012345678", got)
	}
	if got := International("+2348012345678"); got != "2348012345678" {
		t.Errorf("International() = %s, want 2348012345678", got)
	}
	if got := International("bogus"); got != "bogus" {
		t.Errorf("International() should pass invalid input through, got %s", got)
	}
}
