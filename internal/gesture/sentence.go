package gesture

import "strings"

// Sentence accumulates committed characters. It is owned by one session and
// is not safe for concurrent use.
type Sentence struct {
	b strings.Builder
}

// Append adds text to the end of the sentence.
func (s *Sentence) Append(text string) {
	s.b.WriteString(text)
}

// Clear empties the sentence.
func (s *Sentence) Clear() {
	s.b.Reset()
}

// String returns the current contents.
func (s *Sentence) String() string {
	return s.b.String()
}

// Len returns the length of the contents in bytes.
func (s *Sentence) Len() int {
	return s.b.Len()
}
