package detector

import "github.com/nvr-ai/player-overlay/common"

// Selector keeps the single best window of a frame.
//
// A candidate replaces the current best only when its score meets the threshold and is
// strictly greater than the best score so far, which starts at 0. Ties therefore keep the
// first candidate seen, so enumeration order decides between equal scores.
type Selector struct {
	threshold float32
	best      common.Detection
	bestScore float32
	found     bool
	observed  int
}

// NewSelector returns a selector for the given confidence threshold.
func NewSelector(threshold float32) *Selector {
	return &Selector{threshold: threshold}
}

// Observe offers one scored candidate and reports whether it became the best.
func (s *Selector) Observe(candidate common.Detection) bool {
	s.observed++
	if candidate.Score < s.threshold || candidate.Score <= s.bestScore {
		return false
	}
	s.best = candidate
	s.bestScore = candidate.Score
	s.found = true
	return true
}

// Result returns the best candidate, or false when none met the threshold.
func (s *Selector) Result() (common.Detection, bool) {
	return s.best, s.found
}

// Observed returns how many candidates were offered since the last reset.
func (s *Selector) Observed() int { return s.observed }

// Reset clears the selector for the next frame.
func (s *Selector) Reset() {
	*s = Selector{threshold: s.threshold}
}
