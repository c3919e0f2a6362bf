package detector

// BeatState carries the beat counters through consecutive windows.
// Peak is not reset at window boundaries, so a run of loud blocks at the end
// of one window continues into the next.
type BeatState struct {
	Peak  int // Peak is the length of the current above-threshold run.
	Beats int // Beats is the cumulative beat count.
}

// Count scans blocks against threshold and returns the beats added.
// A block strictly above threshold extends the run, and every runLength
// blocks in a run register one beat. Any other block breaks the run.
func (s *BeatState) Count(blocks []float64, threshold float64, runLength int) int {
	found := 0
	for _, e := range blocks {
		if e > threshold {
			s.Peak++
			if s.Peak == runLength {
				found++
				s.Peak = 0
			}
		} else {
			s.Peak = 0
		}
	}
	s.Beats += found
	return found
}
