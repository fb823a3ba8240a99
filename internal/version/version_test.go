package version

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"2.6.3", Version{2, 6, 3}},
		{"2.6.3p62", Version{2, 6, 3}},
		{"3.0.0", Version{3, 0, 0}},
		{" 1.9.1 ", Version{1, 9, 1}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "2.6", "not-a-version"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should have failed", in)
		}
	}
}

func TestCompare(t *testing.T) {
	v25 := MustParse("2.5.0")
	v27 := MustParse("2.7.0")
	v30 := MustParse("3.0.0")

	if !v25.LT(v27) {
		t.Error("2.5.0 should be < 2.7.0")
	}
	if !v30.GTE(v27) {
		t.Error("3.0.0 should be >= 2.7.0")
	}
	if !v27.GTE(v27) {
		t.Error("GTE should be reflexive")
	}
}
