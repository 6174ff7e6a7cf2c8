package domain

import "sort"

// SearchFilter selects candidates for one viewer. A candidate passes only when
// each side's search options accept the other; the viewer's own preferences
// alone are not enough.
type SearchFilter struct {
	Viewer   Profile
	Excluded []UserID

	seen map[UserID]struct{}
}

func NewSearchFilter(viewer Profile, views []View) SearchFilter {
	seen := make(map[UserID]struct{}, len(views))
	for _, v := range views {
		seen[v.To] = struct{}{}
	}
	excluded := make([]UserID, 0, len(seen))
	for id := range seen {
		excluded = append(excluded, id)
	}
	sort.Slice(excluded, func(i, j int) bool { return excluded[i] < excluded[j] })

	return SearchFilter{Viewer: viewer, Excluded: excluded, seen: seen}
}

func (f SearchFilter) Matches(c Profile) bool {
	v := f.Viewer
	if c.ID == v.ID {
		return false
	}
	if !c.Settings.Visible {
		return false
	}
	if c.Location.Actual != v.Location.Actual {
		return false
	}
	if _, ok := f.seen[c.ID]; ok {
		return false
	}
	return v.Settings.SearchOptions.Accepts(c) && c.Settings.SearchOptions.Accepts(v)
}
