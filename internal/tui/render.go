package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/model"
	"github.com/qmjianda/loglayout-sub001/internal/view"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e5e5e5")).Background(lipgloss.Color("#3a3a3a"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a3a3a3"))
	gutterStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff9632")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	heatStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#facc15"))
	sepStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#3a3a3a"))
	markStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#000000"))
)

var heatRunes = []rune(" ▁▂▃▄▅▆▇█")

// HeatBar draws a distribution, scaled to its peak, as a row of block
// glyphs.
func HeatBar(dist []float64, width int) string {
	if width <= 0 {
		return ""
	}
	var b strings.Builder
	for _, v := range engine.Normalize(engine.Resample(dist, width)) {
		idx := int(v*float64(len(heatRunes)-1) + 0.5)
		idx = min(max(idx, 0), len(heatRunes)-1)
		b.WriteRune(heatRunes[idx])
	}
	return b.String()
}

func separator(height int) string {
	return sepStyle.Render(strings.TrimSuffix(strings.Repeat("│\n", max(height, 1)), "\n"))
}

func (m *Model) renderHeader() string {
	sum := m.sess.Summary()
	progress := ""
	if !sum.Complete {
		progress = fmt.Sprintf(" loading %3.0f%%", sum.Progress*100)
	}
	state := ""
	if !sum.Settled {
		state = " ⟳"
	}
	text := fmt.Sprintf(" %s  %d/%d lines  %d layers%s%s", m.sess.Name, sum.OutputLines, sum.SourceLines, sum.Layers, progress, state)
	return headerStyle.Width(m.width).MaxWidth(m.width).Render(text)
}

func (m *Model) renderStatus() string {
	parts := []string{}
	if q := m.sess.GlobalQuery(); q.Query != "" {
		hits := 0
		if res := m.sess.Result(); res != nil {
			hits = len(res.SearchHits)
		}
		parts = append(parts, fmt.Sprintf("search %q: %d hits", q.Query, hits))
	}
	if res := m.sess.Result(); res != nil && len(res.Diagnostics) > 0 {
		parts = append(parts, fmt.Sprintf("%d layer(s) skipped", len(res.Diagnostics)))
	}
	if m.follow {
		parts = append(parts, "follow")
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	return statusStyle.MaxWidth(m.width).Render(" " + strings.Join(parts, " · "))
}

func (m *Model) renderLayers(height int) string {
	entries := m.visibleLayers()
	stats := m.sess.Stats()
	var diagnostics map[string]string
	if res := m.sess.Result(); res != nil {
		diagnostics = res.Diagnostics
	}

	lines := make([]string, 0, height)
	if len(entries) == 0 {
		lines = append(lines, disabledStyle.Render(" no layers (a to add)"))
	}
	for i, e := range entries {
		if len(lines) >= height {
			break
		}
		l := e.Layer
		check := "[x]"
		if !l.Enabled {
			check = "[ ]"
		}
		if l.IsFolder() {
			check = "▾"
			if l.Collapsed {
				check = "▸"
			}
		}
		nameWidth := layerPaneWidth - heatWidth - 8 - 2*e.Depth
		name := truncate(l.Name, max(nameWidth, 4))
		row := fmt.Sprintf("%s%s %-*s", strings.Repeat("  ", e.Depth), check, max(nameWidth, 4), name)

		st, ok := stats[l.ID]
		switch {
		case diagnostics[l.ID] != "":
			row += disabledStyle.Render(" !" + strings.Repeat(" ", heatWidth))
		case ok && !l.IsFolder():
			row += " " + heatStyle.Render(HeatBar(st.Distribution, heatWidth)) + " " + strconv.Itoa(st.Count)
		}

		style := lipgloss.NewStyle()
		if !e.Effective {
			style = disabledStyle
		}
		if m.focus == focusLayers && i == m.layerCursor {
			style = style.Inherit(selectedStyle)
		}
		lines = append(lines, style.Render(row))
	}
	return lipgloss.NewStyle().Width(layerPaneWidth).MaxWidth(layerPaneWidth).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderLog() string {
	total := m.sess.TotalLineCount()
	win := m.scroll.Visible(total)
	lines := m.sess.Window(win.Start, win.End)
	if len(lines) == 0 {
		return disabledStyle.Render(" (no output)")
	}

	gutter := len(strconv.Itoa(m.sess.Source().Len()))
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		num := fmt.Sprintf("%*d ", gutter, l.Index+1)
		if win.Start+i == m.current {
			b.WriteString(currentStyle.Render(num))
		} else {
			b.WriteString(gutterStyle.Render(num))
		}
		b.WriteString(m.renderLine(l))
	}
	return b.String()
}

func (m *Model) renderLine(l model.LogLine) string {
	segments := m.comp.Line(l)
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(renderSegment(seg))
	}
	return b.String()
}

func renderSegment(seg view.Segment) string {
	text := strings.ReplaceAll(seg.Text, "\t", "    ")
	if !seg.Highlighted || seg.Fill == "" {
		return text
	}
	return markStyle.Background(lipgloss.Color(seg.Fill)).Render(text)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
