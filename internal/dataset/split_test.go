package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	s := Split(100, 0.7, 0.1)
	assert.Equal(t, Range{0, 70}, s.Train)
	assert.Equal(t, Range{70, 80}, s.Val)
	assert.Equal(t, Range{80, 100}, s.Test)

	s = Split(10, 0.5, 0)
	assert.Equal(t, 0, s.Val.Len())
	assert.Equal(t, Range{5, 10}, s.Test)

	s = Split(0, 0.7, 0.1)
	assert.Zero(t, s.Train.Len()+s.Val.Len()+s.Test.Len())
}

func TestWindowsStayInsideRange(t *testing.T) {
	starts := Windows(Range{Start: 10, End: 16}, 3, 2)
	require.Equal(t, []int{10, 11}, starts)

	assert.Nil(t, Windows(Range{Start: 0, End: 4}, 3, 2))
	assert.Nil(t, Windows(Range{Start: 0, End: 10}, 0, 2))
}
