package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qmjianda/loglayout-sub001/internal/model"
)

func TestViewport_Visible(t *testing.T) {
	tests := []struct {
		name  string
		vp    Viewport
		total int
		want  Window
	}{
		{"top", Viewport{ScrollTop: 0, Height: 100, RowHeight: 20, Overscan: 2}, 1000, Window{0, 7}},
		{"middle", Viewport{ScrollTop: 200, Height: 100, RowHeight: 20, Overscan: 2}, 1000, Window{8, 17}},
		{"partial row", Viewport{ScrollTop: 210, Height: 100, RowHeight: 20}, 1000, Window{10, 16}},
		{"end", Viewport{ScrollTop: 19_900, Height: 100, RowHeight: 20, Overscan: 3}, 1000, Window{992, 1000}},
		{"empty", Viewport{Height: 100, RowHeight: 20}, 0, Window{}},
		{"rows", Viewport{ScrollTop: 5, Height: 10}, 12, Window{5, 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.vp.Visible(tt.total))
		})
	}
}

func TestViewport_Follow(t *testing.T) {
	vp := Viewport{ScrollTop: 10, Height: 5}
	assert.Equal(t, 3, vp.Follow(3))
	assert.Equal(t, 10, vp.Follow(12))
	assert.Equal(t, 16, vp.Follow(20))
	assert.Equal(t, 0, Clamp(-3, -1, 10).Len())
	assert.True(t, Window{2, 4}.Contains(3))
	assert.False(t, Window{2, 4}.Contains(4))
}

func TestCompose_FirstWriterWins(t *testing.T) {
	text := "connection timeout after 30s"
	spans := []model.Span{
		{Start: 11, End: 18, Color: "#ff0000", Opacity: 100}, // timeout
		{Start: 0, End: 10, Color: "#00ff00", Opacity: 50},   // connection
		{Start: 11, End: 13, Color: "#0000ff", Opacity: 100}, // shorter, same start
		{Start: 15, End: 24, Color: "#0000ff", Opacity: 100}, // overlaps timeout
		{Start: 25, End: 99, Color: "#ffffff", Opacity: 300}, // clamped
	}

	segs := Compose(text, spans)
	var texts []string
	for _, s := range segs {
		texts = append(texts, s.Text)
	}
	assert.Equal(t, []string{"connection", " ", "timeout", " after ", "30s"}, texts)
	assert.Equal(t, "#ff0000", segs[2].Color)
	assert.False(t, segs[3].Highlighted)
	assert.Equal(t, 100, segs[4].Opacity)
}

func TestCompose_NoSpans(t *testing.T) {
	assert.Nil(t, Compose("", nil))
	assert.Equal(t, []Segment{{Text: "x"}}, Compose("x", nil))
	assert.Equal(t, []Segment{{Text: "abc"}}, Compose("abc", []model.Span{{Start: 2, End: 2}}))
}

func TestCompositor_Blend(t *testing.T) {
	c, err := NewCompositor("#000000")
	require.NoError(t, err)
	assert.Equal(t, "#ffffff", c.Blend("#ffffff", 100))
	assert.Equal(t, "#000000", c.Blend("#ffffff", 0))
	assert.Equal(t, "#808080", c.Blend("#ffffff", 50))
	assert.Equal(t, "nope", c.Blend("nope", 50))

	_, err = NewCompositor("bogus")
	assert.Error(t, err)
}

func TestCompositor_LineUsesDisplayText(t *testing.T) {
	c, err := NewCompositor("")
	require.NoError(t, err)
	line := model.LogLine{
		Content:        "user=alice",
		DisplayContent: "user=***",
		Transformed:    true,
		Highlights:     []model.Span{{Start: 5, End: 8, Color: "#ff9632", Opacity: 100}},
	}
	segs := c.Line(line)
	require.Len(t, segs, 2)
	assert.Equal(t, "***", segs[1].Text)
	assert.Equal(t, "#ff9632", segs[1].Fill)
}
