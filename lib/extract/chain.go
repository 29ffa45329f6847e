package extract

// The site hides the same field in several places with no single
// reliable one, so each record field resolves through an ordered
// chain of candidate sources. Three distinct strategies exist and
// they are not interchangeable: first non-empty candidate wins,
// collect everything from one source, or pick the first source that
// yields anything and keep all of its fragments.

// StringSource produces a single candidate value for a field.
type StringSource func() string

// ListSource produces zero or more fragments for a field.
type ListSource func() []string

// FirstMatch evaluates sources in priority order and keeps the first
// non-empty trimmed result.
func FirstMatch(sources ...StringSource) (string, bool) {
	for _, source := range sources {
		if v, ok := Trim(source()); ok {
			return v, true
		}
	}
	return "", false
}

// CollectAll keeps every non-empty fragment of a single source, in
// document order.
func CollectAll(source ListSource) []string {
	var out []string
	for _, fragment := range source() {
		if v, ok := Trim(fragment); ok {
			out = append(out, v)
		}
	}
	return out
}

// FirstSource evaluates sources in priority order and returns all
// fragments of the first source that yields any, so a full content
// block is preferred over a possibly truncated summary without mixing
// the two.
func FirstSource(sources ...ListSource) []string {
	for _, source := range sources {
		if out := CollectAll(source); len(out) > 0 {
			return out
		}
	}
	return nil
}
