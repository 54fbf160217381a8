package preprocess

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/check-cli/internal/model"
)

func TestSegment_ContentBox(t *testing.T) {
	// A check-shaped outline on a page that is itself too square to pass.
	page := blankPage(1600, 1000)
	outline(page, image.Rect(100, 200, 1300, 700), 4)

	segs, err := New(testConfig()).Segment(page)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	assert.False(t, segs[0].Whole)
	assert.Equal(t, image.Rect(76, 190, 1324, 710), segs[0].Bounds)
	assert.Equal(t, image.Rect(0, 0, 1248, 520), segs[0].Image.Bounds())
	// Top-left border pixel lands at the padding offset.
	assert.Equal(t, uint8(20), segs[0].Image.GrayAt(24, 10).Y)
	assert.Equal(t, uint8(255), segs[0].Image.GrayAt(0, 0).Y)
}

func TestSegment_WholePageFallback(t *testing.T) {
	segs, err := New(testConfig()).Segment(blankPage(1200, 500))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.True(t, segs[0].Whole)
	assert.Equal(t, image.Rect(0, 0, 1200, 500), segs[0].Bounds)
}

func TestSegment_RejectedContentFallsBackToPage(t *testing.T) {
	// A small square mark cannot be a check; the page itself can.
	page := blankPage(1200, 500)
	outline(page, image.Rect(10, 10, 60, 60), 3)

	segs, err := New(testConfig()).Segment(page)
	require.NoError(t, err)
	assert.True(t, segs[0].Whole)
}

func TestSegment_NoSegments(t *testing.T) {
	_, err := New(testConfig()).Segment(blankPage(300, 100))
	require.Error(t, err)
	assert.Equal(t, model.CodeNoSegmentsFound, model.ErrorCode(err))

	var pe *model.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 422, pe.StatusCode)
}

func TestSpan(t *testing.T) {
	first, last := span([]int{0, 0, 3, 1, 5, 0}, 2)
	assert.Equal(t, 2, first)
	assert.Equal(t, 5, last)

	first, last = span([]int{0, 1}, 2)
	assert.Equal(t, -1, first)
	assert.Equal(t, -1, last)
}
