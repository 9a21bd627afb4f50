package template

// Override is one manifest-declared override entry, keyed by either an
// exact target triple or a cfg(...) predicate string.
type Override struct {
	Key   string // exact triple, or a cfg(...) string
	PkgURL []string
	BinDir string
	Format string
}

// MatchOverride selects the override applicable to vars per spec.md §4.A's
// match order: (1) exact triple match, then (2) cfg predicates in manifest
// declaration order, first match wins. Returns false if none match.
func MatchOverride(overrides []Override, triple string, vars Vars) (Override, bool) {
	for _, o := range overrides {
		if o.Key == triple {
			return o, true
		}
	}
	for _, o := range overrides {
		if o.Key == triple {
			continue // exact matches already handled above
		}
		pred, err := ParseCfg(o.Key)
		if err != nil {
			continue // malformed predicates never match; reported separately at load time
		}
		if pred.Match(vars) {
			return o, true
		}
	}
	return Override{}, false
}
