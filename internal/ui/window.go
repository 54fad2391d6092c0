package ui

import (
	"context"
	"regexp"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/lantern/internal/filter"
	"github.com/five82/lantern/internal/format"
	"github.com/five82/lantern/internal/session"
)

const (
	// filterSpanFactor scales the number of raw lines scanned per screen when
	// a filter hides most of them.
	filterSpanFactor = 8
	minFilterSpan    = 512
	searchBatch      = 512
)

// windowQuery describes the lines the pane wants to show.
type windowQuery struct {
	seq    uint64
	offset int // first raw line, 1-based
	rows   int
	follow bool
	spec   filter.Spec
}

type windowMsg struct {
	seq     uint64
	offset  int
	total   int
	lines   []format.ParsedLine
	summary filter.Summary
	err     error
}

type searchMsg struct {
	line  int
	found bool
	err   error
}

func loadWindowCmd(ctx context.Context, s *session.Session, q windowQuery) tea.Cmd {
	return func() tea.Msg {
		return loadWindow(ctx, s, q)
	}
}

// loadWindow reads the lines for one screen. Without a filter it reads
// exactly rows lines starting at offset. With a filter it scans a larger span
// and keeps the first rows visible lines, or the last rows when following.
func loadWindow(ctx context.Context, s *session.Session, q windowQuery) windowMsg {
	msg := windowMsg{seq: q.seq}
	total, err := s.TotalLines()
	if err != nil {
		msg.err = err
		return msg
	}
	msg.total = total
	rows := max(q.rows, 1)
	if total == 0 {
		msg.offset = 1
		return msg
	}

	if !q.spec.Active() {
		start := q.offset
		if q.follow {
			start = total - rows + 1
		}
		start = clamp(start, 1, max(1, total-rows+1))
		lines, err := s.Window(ctx, start, start+rows-1)
		if err != nil {
			msg.err = err
			return msg
		}
		msg.offset = start
		msg.lines = lines
		msg.summary = filter.Count(lines, nil)
		return msg
	}

	span := max(rows*filterSpanFactor, minFilterSpan)
	start := clamp(q.offset, 1, total)
	if q.follow {
		start = max(1, total-span+1)
	}
	lines, sum, err := s.Filtered(ctx, start, start+span-1, q.spec)
	if err != nil {
		msg.err = err
		return msg
	}
	if q.follow {
		lines = lines[max(0, len(lines)-rows):]
	} else {
		lines = lines[:min(len(lines), rows)]
	}
	msg.offset = start
	if q.follow && len(lines) > 0 {
		msg.offset = lines[0].Number
	}
	msg.lines = lines
	msg.summary = sum
	return msg
}

func searchCmd(ctx context.Context, s *session.Session, re *regexp.Regexp, from int, forward bool) tea.Cmd {
	return func() tea.Msg {
		line, found, err := findMatch(ctx, s, re, from, forward)
		return searchMsg{line: line, found: found, err: err}
	}
}

// findMatch returns the first line after from (or before it, when searching
// backwards) whose raw text matches re.
func findMatch(ctx context.Context, s *session.Session, re *regexp.Regexp, from int, forward bool) (int, bool, error) {
	total, err := s.TotalLines()
	if err != nil {
		return 0, false, err
	}
	if forward {
		for start := from + 1; start <= total; start += searchBatch {
			lines, err := s.Window(ctx, start, start+searchBatch-1)
			if err != nil {
				return 0, false, err
			}
			for _, p := range lines {
				if re.MatchString(p.Raw) {
					return p.Number, true, nil
				}
			}
		}
		return 0, false, nil
	}
	for end := min(from-1, total); end >= 1; end -= searchBatch {
		lines, err := s.Window(ctx, max(1, end-searchBatch+1), end)
		if err != nil {
			return 0, false, err
		}
		for i := len(lines) - 1; i >= 0; i-- {
			if re.MatchString(lines[i].Raw) {
				return lines[i].Number, true, nil
			}
		}
	}
	return 0, false, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
