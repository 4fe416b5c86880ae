package dataset

// Range is a half-open interval [Start, End) of frame indices.
type Range struct {
	Start int
	End   int
}

// Len returns the number of frames in r.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Splits partitions a recording in time: train first, then val, then test.
type Splits struct {
	Train Range
	Val   Range
	Test  Range
}

// Split divides n frames into contiguous train/val/test ranges. The test
// range receives whatever the train and val fractions leave over.
func Split(n int, trainFraction, valFraction float64) Splits {
	if n < 0 {
		n = 0
	}
	trainEnd := clamp(int(float64(n)*trainFraction), 0, n)
	valEnd := clamp(trainEnd+int(float64(n)*valFraction), trainEnd, n)
	return Splits{
		Train: Range{Start: 0, End: trainEnd},
		Val:   Range{Start: trainEnd, End: valEnd},
		Test:  Range{Start: valEnd, End: n},
	}
}

// Windows returns the start index of every window of context+horizon
// frames that fits entirely inside r.
func Windows(r Range, context, horizon int) []int {
	size := context + horizon
	if context <= 0 || horizon <= 0 || r.Len() < size {
		return nil
	}
	starts := make([]int, 0, r.Len()-size+1)
	for s := r.Start; s+size <= r.End; s++ {
		starts = append(starts, s)
	}
	return starts
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
