package gesture

import (
	"errors"
	"fmt"
)

// Label is one symbol of the classifier's alphabet.
type Label string

// Sentinel is the "no classification" outcome for a frame: no hand, a
// classifier failure, or an index outside the alphabet.
const Sentinel Label = "--"

// SpaceGlyph is shown to observers while the space symbol is tracked.
const SpaceGlyph = "⎵"

// ErrEmptyAlphabet is returned when an alphabet has no symbols.
var ErrEmptyAlphabet = errors.New("alphabet has no labels")

// Alphabet is the ordered label set a classifier scores against. Index k of
// a score vector corresponds to Labels()[k].
type Alphabet struct {
	labels []Label
	index  map[Label]int
	space  Label
}

// NewAlphabet builds an alphabet from symbols in classifier order. space names
// the symbol that commits a literal " "; it may be empty when none does.
func NewAlphabet(symbols []string, space string) (*Alphabet, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyAlphabet
	}

	a := &Alphabet{
		labels: make([]Label, 0, len(symbols)),
		index:  make(map[Label]int, len(symbols)),
		space:  Label(space),
	}
	for i, s := range symbols {
		l := Label(s)
		if l == "" || l == Sentinel {
			return nil, fmt.Errorf("label %d: %q is reserved", i, s)
		}
		if _, dup := a.index[l]; dup {
			return nil, fmt.Errorf("label %d: duplicate %q", i, s)
		}
		a.index[l] = i
		a.labels = append(a.labels, l)
	}
	if space != "" {
		if _, ok := a.index[a.space]; !ok {
			return nil, fmt.Errorf("space label %q is not in the alphabet", space)
		}
	}
	return a, nil
}

// Len returns the number of symbols, excluding the sentinel.
func (a *Alphabet) Len() int {
	return len(a.labels)
}

// Labels returns a copy of the symbols in classifier order.
func (a *Alphabet) Labels() []Label {
	out := make([]Label, len(a.labels))
	copy(out, a.labels)
	return out
}

// At resolves a class index. Out-of-range indices resolve to Sentinel.
func (a *Alphabet) At(i int) Label {
	if i < 0 || i >= len(a.labels) {
		return Sentinel
	}
	return a.labels[i]
}

// Index returns the class index of l, or -1.
func (a *Alphabet) Index(l Label) int {
	if i, ok := a.index[l]; ok {
		return i
	}
	return -1
}

// Contains reports whether l is a symbol of the alphabet.
func (a *Alphabet) Contains(l Label) bool {
	_, ok := a.index[l]
	return ok
}

// Char returns the text committed for l. Only the space symbol is translated.
func (a *Alphabet) Char(l Label) string {
	if a.space != "" && l == a.space {
		return " "
	}
	return string(l)
}

// Display returns how l is shown to observers.
func (a *Alphabet) Display(l Label) string {
	switch {
	case l == "" || l == Sentinel:
		return string(Sentinel)
	case a.space != "" && l == a.space:
		return SpaceGlyph
	default:
		return string(l)
	}
}
