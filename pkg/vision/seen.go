package vision

import "strings"

// Sighting is produced the first time a colour is reported.
type Sighting struct {
	Label Label
	Seen  []Label // Every colour seen so far, in first-sighting order
}

// Summary renders the seen set as "red, green".
func (s Sighting) Summary() string {
	names := make([]string, len(s.Seen))
	for i, l := range s.Seen {
		names[i] = l.String()
	}
	return strings.Join(names, ", ")
}

// SeenColors is the insertion-ordered set of colours already reported.
// It only grows. It is owned by the control loop and is not safe for
// concurrent use.
type SeenColors struct {
	order []Label
	set   map[Label]struct{}
}

// NewSeenColors returns an empty set.
func NewSeenColors() *SeenColors {
	return &SeenColors{set: make(map[Label]struct{})}
}

// Report records l. It returns a Sighting and true only the first time a
// non-None label is reported.
func (s *SeenColors) Report(l Label) (Sighting, bool) {
	if l == None {
		return Sighting{}, false
	}
	if _, ok := s.set[l]; ok {
		return Sighting{}, false
	}
	s.set[l] = struct{}{}
	s.order = append(s.order, l)
	return Sighting{Label: l, Seen: s.Labels()}, true
}

// Has reports whether l has been seen.
func (s *SeenColors) Has(l Label) bool {
	_, ok := s.set[l]
	return ok
}

// Labels returns a copy of the seen colours in first-sighting order.
func (s *SeenColors) Labels() []Label {
	out := make([]Label, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of distinct colours seen.
func (s *SeenColors) Len() int {
	return len(s.order)
}
