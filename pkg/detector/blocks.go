package detector

import "gonum.org/v1/gonum/floats"

// Cursor marks where block aggregation resumes for the next window.
type Cursor struct {
	Start    int // Start is the first energy index the next window reads.
	BlockEnd int // BlockEnd is the exclusive end of the next window's first block.
}

// NewCursor returns the cursor of the first window.
func NewCursor(blockSize int) Cursor {
	return Cursor{Start: 0, BlockEnd: blockSize}
}

// Advance moves the cursor to the next window.
func (c Cursor) Advance(stride int) Cursor {
	return Cursor{Start: c.Start + stride, BlockEnd: c.BlockEnd + stride}
}

// Span is a half-open range of sample indices.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Aggregate sums blockCount consecutive blocks of energy starting at the
// cursor. Each block stops at cur.BlockEnd + j*blockSize and the next one
// continues from there. Reads never go past len(energy); blocks beyond the
// end sum to zero. The returned span is the range actually read, clipped to
// the energy buffer.
func Aggregate(energy []float64, cur Cursor, blockSize, blockCount int) ([]float64, Span) {
	blocks := make([]float64, blockCount)

	start := min(max(cur.Start, 0), len(energy))
	i := start
	end := cur.BlockEnd
	for j := range blocks {
		stop := min(end, len(energy))
		if stop > i {
			blocks[j] = floats.Sum(energy[i:stop])
			i = stop
		}
		end += blockSize
	}

	return blocks, Span{Start: start, End: i}
}
