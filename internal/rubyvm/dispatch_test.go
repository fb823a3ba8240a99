package rubyvm

import (
	"testing"

	"github.com/rbspy/rbspy-sub000/internal/version"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		v    string
		want *Layout
	}{
		{"1.9.1", layout191},
		{"1.9.3", layout192},
		{"2.2.10", layout20},
		{"2.4.9", layout23},
		{"2.5.8", layout25},
		{"2.7.6", layout26},
		{"3.2.0", layout30},
	}
	for _, tt := range tests {
		got, ok := Select(version.MustParse(tt.v))
		if !ok {
			t.Errorf("Select(%s): no layout found", tt.v)
			continue
		}
		if got != tt.want {
			t.Errorf("Select(%s) = %s, want %s", tt.v, got.Name, tt.want.Name)
		}
	}
}

func TestSelectTooOld(t *testing.T) {
	if _, ok := Select(version.MustParse("1.8.7")); ok {
		t.Error("Select(1.8.7) should report no layout: older than rbspy supports")
	}
}
