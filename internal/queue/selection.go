package queue

// Selection tracks which of a part's media items are chosen for publishing.
// It starts with everything selected and is re-derived back to "all
// selected" whenever the owning part's media list changes; de-selections do
// not survive a shrink.
type Selection struct {
	universe []string
	chosen   map[string]struct{}
}

// NewSelection builds a selection over the given media list with every
// item chosen.
func NewSelection(media []string) *Selection {
	s := &Selection{}
	s.Rederive(media)
	return s
}

// Rederive recomputes the selection from the full media list, selecting
// everything. This is intentionally not a diff against the previous state:
// the original surface rebuilt the set from scratch on every media-list
// change, so a deletion clears any prior de-selection of the remaining
// items.
func (s *Selection) Rederive(media []string) {
	s.universe = append([]string(nil), media...)
	s.chosen = make(map[string]struct{}, len(media))
	for _, id := range media {
		s.chosen[id] = struct{}{}
	}
}

// Toggle flips membership for one media item. Items outside the part's
// current media list are ignored.
func (s *Selection) Toggle(id string) {
	if !s.inUniverse(id) {
		return
	}
	if _, ok := s.chosen[id]; ok {
		delete(s.chosen, id)
	} else {
		s.chosen[id] = struct{}{}
	}
}

// Selected reports whether the item is currently chosen.
func (s *Selection) Selected(id string) bool {
	_, ok := s.chosen[id]
	return ok
}

// IsEmpty reports whether nothing is chosen. Submitting an empty selection
// is refused before any gateway call is made.
func (s *Selection) IsEmpty() bool {
	return len(s.chosen) == 0
}

// Count returns the number of chosen items.
func (s *Selection) Count() int {
	return len(s.chosen)
}

// Items returns the chosen media in the part's original order.
func (s *Selection) Items() []string {
	out := make([]string, 0, len(s.chosen))
	for _, id := range s.universe {
		if _, ok := s.chosen[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (s *Selection) inUniverse(id string) bool {
	for _, u := range s.universe {
		if u == id {
			return true
		}
	}
	return false
}
