package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/lantern/internal/format"
)

// renderHeader renders the top bar: source, format, line count, follow state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)
	st := m.snapshot.Status

	parts := []string{bg.Render("lantern", styles.Logo)}

	if !m.snapshot.HasStatus && m.snapshot.LastError == nil {
		parts = append(parts, bg.Render("Indexing...", styles.WarningText.Bold(true)))
		return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
	}

	compact := m.width < 100
	name := st.Source
	if compact {
		name = truncateMiddle(name, 30)
	} else {
		name = truncateMiddle(name, 60)
	}
	parts = append(parts, bg.Render(name, styles.Text))

	formatName := st.FormatName
	if formatName == "" {
		formatName = "plain"
	}
	parts = append(parts, bg.Render(formatName, styles.AccentText))
	parts = append(parts, bg.Render("Lines:", styles.MutedText)+bg.Spaces(1)+
		bg.Render(strconv.Itoa(max(st.TotalLines, m.total)), styles.Text))

	if m.follow {
		parts = append(parts, bg.Render("● FOLLOW", styles.SuccessText))
	} else {
		parts = append(parts, bg.Render("○ PAUSED", styles.MutedText))
	}
	if !st.Following && !compact {
		parts = append(parts, bg.Render("not watching", styles.FaintText))
	}

	if err := m.snapshot.LastError; err != nil {
		label := "READ ERROR"
		if m.snapshot.IsOffline() {
			label = "OFFLINE"
		}
		parts = append(parts, bg.Render(label, styles.DangerText))
		if !compact {
			parts = append(parts, bg.Render(truncateMiddle(err.Error(), 40), styles.MutedText))
		}
	} else if !m.snapshot.LastUpdated.IsZero() && !compact {
		parts = append(parts, bg.Render("updated "+humanizeDuration(time.Since(m.snapshot.LastUpdated))+" ago", styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// renderStatusBar renders the bottom bar, or the active text input.
func (m Model) renderStatusBar() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	switch m.input {
	case inputFilter:
		line := m.filterInput.View()
		if m.filterErr != "" {
			line += "  " + styles.DangerText.Render(m.filterErr)
		}
		return styles.Footer.Width(m.width).Render(line)
	case inputSearch:
		return styles.Footer.Width(m.width).Render(m.searchInput.View())
	}

	var parts []string
	switch {
	case m.loadErr != nil:
		parts = append(parts, bg.Render(m.loadErr.Error(), styles.DangerText))
	case len(m.lines) == 0:
		parts = append(parts, bg.Render("no lines", styles.MutedText))
	default:
		first, last := m.lines[0].Number, m.lines[len(m.lines)-1].Number
		parts = append(parts, bg.Render(fmt.Sprintf("%d-%d of %d", first, last, m.total), styles.Text))
	}

	if spec := m.spec(); spec.Active() {
		parts = append(parts, bg.Render(fmt.Sprintf("%d/%d shown", m.summary.Filtered, m.summary.Total), styles.MutedText))
		if m.exprText != "" {
			parts = append(parts, bg.Render("filter: "+m.exprText, styles.AccentText))
		}
		if m.level != "" {
			parts = append(parts, bg.Render(m.levelField+"="+m.level, styles.LevelStyle(m.level)))
		}
	}
	if m.searchQuery != "" {
		parts = append(parts, bg.Render("/"+m.searchQuery, styles.InfoText))
	}
	if m.searchNote != "" {
		parts = append(parts, bg.Render(m.searchNote, styles.WarningText))
	}
	if n := len(m.snapshot.Notices); n > 0 {
		parts = append(parts, bg.Render(m.snapshot.Notices[n-1], styles.FaintText))
	}
	parts = append(parts, bg.Render("h/? help", styles.FaintText))

	return styles.Footer.Width(m.width).Render(bg.Join(parts, "  │  "))
}

// renderPane lays the loaded lines out in the viewport.
func (m *Model) renderPane() {
	if !m.ready {
		return
	}
	m.pane.Width = m.width
	m.pane.Height = m.rows()
	m.pane.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))

	styles := m.theme.Styles()
	gutter := len(strconv.Itoa(max(m.total, 1)))
	out := make([]string, len(m.lines))
	for i, p := range m.lines {
		out[i] = m.renderLine(p, gutter, styles)
	}
	m.pane.SetContent(strings.Join(out, "\n"))
	m.pane.GotoTop()
}

// renderLine renders one line with its number. Structured lines take the
// color of their level field; continuation lines are muted.
func (m Model) renderLine(p format.ParsedLine, gutter int, styles Styles) string {
	num := styles.Gutter.Render(fmt.Sprintf("%*d ", gutter, p.Number))
	text := truncate(expandTabs(p.Raw), m.width-gutter-1)

	style := styles.Text
	switch {
	case !p.Structured():
		style = styles.MutedText
	case m.levelField != "":
		if level, ok := p.Fields.Get(m.levelField); ok {
			style = styles.LevelStyle(level)
		}
	default:
		if level, ok := p.Fields.Get("level"); ok {
			style = styles.LevelStyle(level)
		}
	}

	if m.searchRegex == nil {
		return num + style.Render(text)
	}
	return num + highlight(text, m.searchRegex.FindAllStringIndex(text, -1), style, styles.Selected)
}

// highlight renders text with the given ranges in hl and the rest in base.
func highlight(text string, ranges [][]int, base, hl lipgloss.Style) string {
	if len(ranges) == 0 {
		return base.Render(text)
	}
	var b strings.Builder
	last := 0
	for _, r := range ranges {
		if r[0] == r[1] {
			continue
		}
		if r[0] > last {
			b.WriteString(base.Render(text[last:r[0]]))
		}
		b.WriteString(hl.Render(text[r[0]:r[1]]))
		last = r[1]
	}
	if last < len(text) {
		b.WriteString(base.Render(text[last:]))
	}
	return b.String()
}
