package vision

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSeenColors_ExactlyOnce(t *testing.T) {
	inputs := []Label{None, Red, Red, None, Green, Red, Blue, Green, Blue, None, Red}

	seen := NewSeenColors()
	var got []Sighting
	for _, l := range inputs {
		if s, ok := seen.Report(l); ok {
			got = append(got, s)
		}
	}

	want := []Sighting{
		{Label: Red, Seen: []Label{Red}},
		{Label: Green, Seen: []Label{Red, Green}},
		{Label: Blue, Seen: []Label{Red, Green, Blue}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sightings mismatch (-want +got):\n%s", diff)
	}
	if seen.Len() != 3 {
		t.Errorf("Len = %d, want 3", seen.Len())
	}
}

// For any sequence, the number of sightings equals the number of distinct
// non-None labels, in order of first occurrence.
func TestSeenColors_Property(t *testing.T) {
	labels := []Label{None, Red, Green, Blue}

	// Enumerate every sequence of length 6 over the four labels.
	const n = 6
	total := 1
	for i := 0; i < n; i++ {
		total *= len(labels)
	}

	for code := 0; code < total; code++ {
		seq := make([]Label, n)
		c := code
		for i := range seq {
			seq[i] = labels[c%len(labels)]
			c /= len(labels)
		}

		var firsts []Label
		dedup := map[Label]bool{}
		for _, l := range seq {
			if l != None && !dedup[l] {
				dedup[l] = true
				firsts = append(firsts, l)
			}
		}

		seen := NewSeenColors()
		var reported []Label
		prevLen := 0
		for _, l := range seq {
			if s, ok := seen.Report(l); ok {
				reported = append(reported, s.Label)
			}
			if seen.Len() < prevLen {
				t.Fatalf("set shrank on %v", seq)
			}
			prevLen = seen.Len()
		}

		if diff := cmp.Diff(firsts, reported); diff != "" {
			t.Fatalf("sequence %v (-want +got):\n%s", seq, diff)
		}
	}
}

func TestSighting_Summary(t *testing.T) {
	s := Sighting{Label: Blue, Seen: []Label{Red, Blue}}
	if got := s.Summary(); got != "red, blue" {
		t.Errorf("Summary = %q", got)
	}
}

func TestSeenColors_LabelsIsCopy(t *testing.T) {
	seen := NewSeenColors()
	seen.Report(Red)
	ls := seen.Labels()
	ls[0] = Blue
	if !seen.Has(Red) || seen.Has(Blue) {
		t.Error("mutating Labels() result changed the set")
	}
}
