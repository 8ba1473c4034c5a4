package query

import "context"

// Submenu nests tags under a topmenu/submenu grouping (original_source/
// elixir/query.py `versions` command: "<topmenu> <submenu> <tag>" lines
// group into a topmenu -> submenu -> [tags] tree).
type Submenu struct {
	Name string
	Tags []string
}

// Topmenu is the outermost grouping level.
type Topmenu struct {
	Name     string
	Tags     []string // tags with no submenu
	Submenus []Submenu
}

// Versions returns the nested topmenu/submenu/tag tree reported by
// `list-tags -h` (spec §6; SPEC_FULL.md supplemented feature 5).
func (q *Query) Versions(ctx context.Context) ([]Topmenu, error) {
	entries, err := q.e.vcs.ListTagsGrouped(ctx)
	if err != nil {
		return nil, err
	}

	topIndex := make(map[string]int)
	var tops []Topmenu
	subIndex := make(map[string]map[string]int)

	for _, e := range entries {
		ti, ok := topIndex[e.Topmenu]
		if !ok {
			ti = len(tops)
			topIndex[e.Topmenu] = ti
			tops = append(tops, Topmenu{Name: e.Topmenu})
			subIndex[e.Topmenu] = make(map[string]int)
		}
		if e.Submenu == "" {
			tops[ti].Tags = append(tops[ti].Tags, e.Tag)
			continue
		}
		si, ok := subIndex[e.Topmenu][e.Submenu]
		if !ok {
			si = len(tops[ti].Submenus)
			subIndex[e.Topmenu][e.Submenu] = si
			tops[ti].Submenus = append(tops[ti].Submenus, Submenu{Name: e.Submenu})
		}
		tops[ti].Submenus[si].Tags = append(tops[ti].Submenus[si].Tags, e.Tag)
	}
	return tops, nil
}
