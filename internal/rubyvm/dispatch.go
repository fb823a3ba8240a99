package rubyvm

import "github.com/rbspy/rbspy-sub000/internal/version"

// boundary pairs a family's Layout with the version range [From, To)
// it applies to (To exclusive; a zero To means "and later").
type boundary struct {
	From, To version.Version
	Layout   *Layout
}

var boundaries = []boundary{
	{From: version.MustParse("1.9.1"), To: version.MustParse("1.9.2"), Layout: layout191},
	{From: version.MustParse("1.9.2"), To: version.MustParse("2.0.0"), Layout: layout192},
	{From: version.MustParse("2.0.0"), To: version.MustParse("2.3.0"), Layout: layout20},
	{From: version.MustParse("2.3.0"), To: version.MustParse("2.5.0"), Layout: layout23},
	{From: version.MustParse("2.5.0"), To: version.MustParse("2.6.0"), Layout: layout25},
	{From: version.MustParse("2.6.0"), To: version.MustParse("3.0.0"), Layout: layout26},
	{From: version.MustParse("3.0.0"), To: version.Version{}, Layout: layout30},
}

// Select returns the Layout for v, or false if v is older than rbspy's
// oldest supported Ruby.
func Select(v version.Version) (*Layout, bool) {
	for _, b := range boundaries {
		if v.LT(b.From) {
			continue
		}
		if b.To != (version.Version{}) && v.GTE(b.To) {
			continue
		}
		return b.Layout, true
	}
	return nil, false
}

// SupportsPathObj reports whether this layout needs a resolved String
// class address to decode iseq paths.
func (l *Layout) SupportsPathObj() bool {
	return l.LocationPathObjOffset != 0
}
