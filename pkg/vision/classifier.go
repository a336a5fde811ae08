package vision

import "fmt"

// Label is a discrete colour reported by the classifier.
type Label int

const (
	None Label = iota
	Red
	Green
	Blue
)

// String returns the lower-case colour name, or "" for None.
func (l Label) String() string {
	switch l {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return ""
	}
}

// MarshalText encodes the label as its name so it can be used in JSON.
func (l Label) MarshalText() ([]byte, error) {
	if l == None {
		return []byte("none"), nil
	}
	return []byte(l.String()), nil
}

// Rule bounds one colour: the dominant channel must exceed Min and both
// other channels must stay below their caps.
type Rule struct {
	Min  int // Dominant channel lower bound (exclusive)
	CapA int // First non-dominant channel upper bound (exclusive)
	CapB int // Second non-dominant channel upper bound (exclusive)
}

// Thresholds is one classification regime. Rules are evaluated red, green,
// blue and the first match wins.
type Thresholds struct {
	Name  string
	Red   Rule // CapA=green, CapB=blue
	Green Rule // CapA=red, CapB=blue
	Blue  Rule // CapA=red, CapB=green
}

// Loose is the permissive regime used in simulation.
func Loose() Thresholds {
	return Thresholds{
		Name:  "loose",
		Red:   Rule{Min: 100, CapA: 80, CapB: 80},
		Green: Rule{Min: 100, CapA: 80, CapB: 80},
		Blue:  Rule{Min: 100, CapA: 80, CapB: 80},
	}
}

// Strict requires saturated colours; used on real hardware where ambient
// light washes out the patch.
func Strict() Thresholds {
	return Thresholds{
		Name:  "strict",
		Red:   Rule{Min: 200, CapA: 40, CapB: 45},
		Green: Rule{Min: 200, CapA: 45, CapB: 45},
		Blue:  Rule{Min: 200, CapA: 45, CapB: 45},
	}
}

// ProfileByName returns the regime for a deployment profile.
func ProfileByName(name string) (Thresholds, error) {
	switch name {
	case "", "loose":
		return Loose(), nil
	case "strict":
		return Strict(), nil
	default:
		return Thresholds{}, fmt.Errorf("vision: unknown threshold profile %q", name)
	}
}

func (r Rule) match(dominant, a, b int) bool {
	return dominant > r.Min && a < r.CapA && b < r.CapB
}

// Matches returns every label whose rule accepts s, in evaluation order.
// For a well-formed regime this holds at most one label.
func (t Thresholds) Matches(s Sample) []Label {
	var out []Label
	if t.Red.match(s.R, s.G, s.B) {
		out = append(out, Red)
	}
	if t.Green.match(s.G, s.R, s.B) {
		out = append(out, Green)
	}
	if t.Blue.match(s.B, s.R, s.G) {
		out = append(out, Blue)
	}
	return out
}

// Classify maps a sample to a label; None when no rule matches.
func (t Thresholds) Classify(s Sample) Label {
	switch {
	case t.Red.match(s.R, s.G, s.B):
		return Red
	case t.Green.match(s.G, s.R, s.B):
		return Green
	case t.Blue.match(s.B, s.R, s.G):
		return Blue
	default:
		return None
	}
}

// channelRange is the open interval (lo, hi) a rule allows on one channel.
type channelRange struct{ lo, hi int }

// ranges returns the red, green and blue intervals for a rule whose
// dominant channel is at index dom.
func (r Rule) ranges(dom int) [3]channelRange {
	var out [3]channelRange
	caps := []int{r.CapA, r.CapB}
	for ch := 0; ch < 3; ch++ {
		if ch == dom {
			out[ch] = channelRange{lo: r.Min, hi: 256}
			continue
		}
		out[ch] = channelRange{lo: -1, hi: caps[0]}
		caps = caps[1:]
	}
	return out
}

func overlaps(a, b [3]channelRange) bool {
	for ch := 0; ch < 3; ch++ {
		lo := max(a[ch].lo, b[ch].lo)
		hi := min(a[ch].hi, b[ch].hi)
		if hi-lo < 2 { // no integer strictly between
			return false
		}
	}
	return true
}

// Disjoint reports whether no integer sample can satisfy two rules at once.
func (t Thresholds) Disjoint() bool {
	rs := [][3]channelRange{t.Red.ranges(0), t.Green.ranges(1), t.Blue.ranges(2)}
	for i := 0; i < len(rs); i++ {
		for j := i + 1; j < len(rs); j++ {
			if overlaps(rs[i], rs[j]) {
				return false
			}
		}
	}
	return true
}

// whiteMin is the per-channel floor for a white patch.
const whiteMin = 100

// IsWhite reports whether every channel exceeds 100. It only gates the
// optional image classifier; it never produces a colour report.
func IsWhite(s Sample) bool {
	return s.R > whiteMin && s.G > whiteMin && s.B > whiteMin
}
