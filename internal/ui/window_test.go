package ui

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/five82/lantern/internal/filter"
	"github.com/five82/lantern/internal/format"
	"github.com/five82/lantern/internal/session"
	"github.com/five82/lantern/internal/source"
)

const hdfsLog = "2015-10-18 18:01:47,978 ERROR org.apache.Foo: failed\n" +
	"java.lang.IllegalStateException: boom\n" +
	"\tat org.apache.Foo.run(Foo.java:10)\n" +
	"2015-10-18 18:01:48,001 INFO org.apache.Foo: recovered\n"

func openSession(t *testing.T, content string) *session.Session {
	t.Helper()
	s := session.New(session.Options{Registry: format.NewDefaultRegistry()})
	t.Cleanup(s.Close)
	if err := s.Open(context.Background(), source.NewMemory("mem", []byte(content))); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func lineNumbers(lines []format.ParsedLine) []int {
	out := make([]int, len(lines))
	for i, p := range lines {
		out[i] = p.Number
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadWindow(t *testing.T) {
	s := openSession(t, hdfsLog)
	errorOnly := filter.Spec{"level": filter.OneOf{Values: []string{"ERROR"}}}
	infoOnly := filter.Spec{"level": filter.OneOf{Values: []string{"INFO"}}}

	tests := []struct {
		name       string
		q          windowQuery
		wantOffset int
		wantLines  []int
		wantShown  int
	}{
		{"first screen", windowQuery{offset: 1, rows: 2}, 1, []int{1, 2}, 2},
		{"follow pins to end", windowQuery{offset: 1, rows: 2, follow: true}, 3, []int{3, 4}, 2},
		{"offset past end clamps", windowQuery{offset: 50, rows: 2}, 3, []int{3, 4}, 2},
		{"offset before start clamps", windowQuery{offset: -3, rows: 3}, 1, []int{1, 2, 3}, 3},
		{"filter keeps continuation", windowQuery{offset: 1, rows: 10, spec: errorOnly}, 1, []int{1, 2, 3}, 3},
		{"filter truncates to rows", windowQuery{offset: 1, rows: 2, spec: errorOnly}, 1, []int{1, 2}, 3},
		{"filter follow keeps tail", windowQuery{offset: 1, rows: 10, follow: true, spec: infoOnly}, 4, []int{4}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.q.seq = 7
			msg := loadWindow(context.Background(), s, tt.q)
			if msg.err != nil {
				t.Fatalf("loadWindow error: %v", msg.err)
			}
			if msg.seq != 7 {
				t.Fatalf("seq = %d, want 7", msg.seq)
			}
			if msg.total != 4 {
				t.Fatalf("total = %d, want 4", msg.total)
			}
			if msg.offset != tt.wantOffset {
				t.Fatalf("offset = %d, want %d", msg.offset, tt.wantOffset)
			}
			if got := lineNumbers(msg.lines); !equalInts(got, tt.wantLines) {
				t.Fatalf("lines = %v, want %v", got, tt.wantLines)
			}
			if msg.summary.Filtered != tt.wantShown {
				t.Fatalf("summary.Filtered = %d, want %d", msg.summary.Filtered, tt.wantShown)
			}
		})
	}
}

func TestLoadWindow_NoSource(t *testing.T) {
	s := session.New(session.Options{})
	msg := loadWindow(context.Background(), s, windowQuery{rows: 5})
	if !errors.Is(msg.err, session.ErrNoSource) {
		t.Fatalf("err = %v, want ErrNoSource", msg.err)
	}
}

func TestFindMatch(t *testing.T) {
	s := openSession(t, hdfsLog)
	ctx := context.Background()

	tests := []struct {
		name    string
		pattern string
		from    int
		forward bool
		want    int
		found   bool
	}{
		{"forward from top", `recovered`, 0, true, 4, true},
		{"forward skips from line", `org\.apache\.Foo`, 1, true, 3, true},
		{"backward", `exception`, 5, false, 2, true},
		{"backward excludes from line", `failed`, 1, false, 0, false},
		{"no match", `nothing here`, 0, true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := regexp.MustCompile("(?i)" + tt.pattern)
			got, found, err := findMatch(ctx, s, re, tt.from, tt.forward)
			if err != nil {
				t.Fatalf("findMatch error: %v", err)
			}
			if found != tt.found || got != tt.want {
				t.Fatalf("findMatch = (%d, %v), want (%d, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}
