package raidlog

// kindSet is the set of event kinds a parse keeps. A nil set keeps every kind.
type kindSet map[Kind]struct{}

// selectKinds resolves include and exclude lists into the kinds kept.
// Without includes the set starts from every kind, unrecognized lines
// included; excludes are removed last so they always win.
func selectKinds(include, exclude []Kind) kindSet {
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}

	base := include
	if len(base) == 0 {
		base = []Kind{KindUnrecognized}
		for _, name := range KindNames() {
			k, _ := ParseKind(name)
			base = append(base, k)
		}
	}

	set := make(kindSet, len(base))
	for _, k := range base {
		set[k] = struct{}{}
	}
	for _, k := range exclude {
		delete(set, k)
	}
	return set
}

func (s kindSet) has(k Kind) bool {
	if s == nil {
		return true
	}
	_, ok := s[k]
	return ok
}

// keeps reports whether ParseFile yields ev. The time range only applies to
// recognized events; unrecognized lines carry no timestamp.
func (c *parseConfig) keeps(ev Event) bool {
	if !c.kinds.has(ev.Kind) {
		return false
	}
	if !ev.Recognized() {
		return c.includeUnrecognized
	}
	if !c.since.IsZero() && ev.Timestamp.Before(c.since) {
		return false
	}
	return c.until.IsZero() || ev.Timestamp.Before(c.until)
}
