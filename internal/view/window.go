// Package view turns pipeline output into what a viewer draws: the slice
// of rows that is on screen and the coloured segments of each row.
package view

// Window is a half-open range [Start, End) of output positions.
type Window struct {
	Start int
	End   int
}

// Len returns the number of rows in the window.
func (w Window) Len() int {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

// Contains reports whether pos lies inside the window.
func (w Window) Contains(pos int) bool {
	return pos >= w.Start && pos < w.End
}

// Viewport describes a scrollable area in arbitrary units (pixels for a
// browser, terminal rows for a TUI).
type Viewport struct {
	ScrollTop int
	Height    int
	RowHeight int
	Overscan  int
}

// Visible returns the rows to render for a list of total rows: every row
// that intersects the viewport plus Overscan rows on each side.
func (v Viewport) Visible(total int) Window {
	if total <= 0 || v.Height <= 0 {
		return Window{}
	}
	rh := v.RowHeight
	if rh <= 0 {
		rh = 1
	}
	top := v.ScrollTop
	if top < 0 {
		top = 0
	}
	overscan := v.Overscan
	if overscan < 0 {
		overscan = 0
	}

	first := top/rh - overscan
	last := (top+v.Height+rh-1)/rh + overscan
	return Clamp(first, last, total)
}

// Clamp bounds [start, end) to [0, total).
func Clamp(start, end, total int) Window {
	if start < 0 {
		start = 0
	}
	if end > total {
		end = total
	}
	if end < start {
		end = start
	}
	return Window{Start: start, End: end}
}

// Follow returns the scroll offset that keeps pos visible, moving the
// viewport as little as possible.
func (v Viewport) Follow(pos int) int {
	rh := v.RowHeight
	if rh <= 0 {
		rh = 1
	}
	top := pos * rh
	switch {
	case top < v.ScrollTop:
		return top
	case top+rh > v.ScrollTop+v.Height:
		off := top + rh - v.Height
		if off < 0 {
			off = 0
		}
		return off
	}
	return v.ScrollTop
}
