package filter

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/five82/lantern/internal/format"
)

// Constraint accepts or rejects a single field value.
type Constraint interface {
	// Active reports whether the constraint restricts anything.
	Active() bool
	// Match reports whether value satisfies the constraint.
	Match(value string) bool
}

// TimeRange accepts times within [From, To]. A nil bound is open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

func (r TimeRange) Active() bool { return r.From != nil || r.To != nil }

func (r TimeRange) Match(value string) bool {
	t, ok := ParseTime(value)
	if !ok {
		return true
	}
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// NumberRange accepts numbers within [Min, Max]. A nil bound is open.
type NumberRange struct {
	Min *float64
	Max *float64
}

func (r NumberRange) Active() bool { return r.Min != nil || r.Max != nil }

func (r NumberRange) Match(value string) bool {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return true
	}
	if r.Min != nil && n < *r.Min {
		return false
	}
	if r.Max != nil && n > *r.Max {
		return false
	}
	return true
}

// OneOf accepts any of Values, ignoring case.
type OneOf struct {
	Values []string
}

func (o OneOf) Active() bool { return len(o.Values) > 0 }

func (o OneOf) Match(value string) bool {
	for _, v := range o.Values {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// Contains accepts values containing Text, ignoring case.
type Contains struct {
	Text string
}

func (c Contains) Active() bool { return strings.TrimSpace(c.Text) != "" }

func (c Contains) Match(value string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(c.Text))
}

// Spec maps field names to constraints.
type Spec map[string]Constraint

// Active reports whether any constraint restricts anything.
func (s Spec) Active() bool {
	for _, c := range s {
		if c != nil && c.Active() {
			return true
		}
	}
	return false
}

// Fields returns the constrained field names in sorted order.
func (s Spec) Fields() []string {
	names := make([]string, 0, len(s))
	for name, c := range s {
		if c != nil && c.Active() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Matches evaluates a structured line against every active constraint whose
// field the line carries.
func (s Spec) Matches(p format.ParsedLine) bool {
	for name, c := range s {
		if c == nil || !c.Active() {
			continue
		}
		value, ok := p.Fields.Get(name)
		if !ok {
			continue
		}
		if !c.Match(value) {
			return false
		}
	}
	return true
}

// Matcher applies a Spec to lines one at a time, carrying the continuation
// decision between calls.
type Matcher struct {
	spec   Spec
	active bool
	attach bool
}

// NewMatcher returns a Matcher for spec.
func NewMatcher(spec Spec) *Matcher {
	return &Matcher{spec: spec, active: spec.Active()}
}

// Next reports whether p is visible.
func (m *Matcher) Next(p format.ParsedLine) bool {
	if !m.active {
		return true
	}
	if !p.Structured() {
		return m.attach
	}
	m.attach = m.spec.Matches(p)
	return m.attach
}

// Reset forgets the continuation decision.
func (m *Matcher) Reset() { m.attach = false }

// Apply returns the visible lines in order. An inactive spec returns lines
// unchanged.
func Apply(lines []format.ParsedLine, spec Spec) []format.ParsedLine {
	if !spec.Active() {
		return lines
	}
	m := NewMatcher(spec)
	out := make([]format.ParsedLine, 0, len(lines))
	for _, p := range lines {
		if m.Next(p) {
			out = append(out, p)
		}
	}
	return out
}

// Summary reports the effect of a filter.
type Summary struct {
	Total              int
	Filtered           int
	StructuredFiltered int
}

// Count applies spec and reports how many lines remain.
func Count(lines []format.ParsedLine, spec Spec) Summary {
	s := Summary{Total: len(lines)}
	m := NewMatcher(spec)
	for _, p := range lines {
		if !m.Next(p) {
			continue
		}
		s.Filtered++
		if p.Structured() {
			s.StructuredFiltered++
		}
	}
	return s
}

// Distinct returns the sorted unique values of field across lines.
func Distinct(lines []format.ParsedLine, field string) []string {
	seen := map[string]struct{}{}
	for _, p := range lines {
		if v, ok := p.Fields.Get(field); ok {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Kind is the constraint kind suited to a field.
type Kind int

const (
	KindContains Kind = iota
	KindOneOf
	KindTimeRange
	KindNumberRange
)

func (k Kind) String() string {
	switch k {
	case KindOneOf:
		return "one-of"
	case KindTimeRange:
		return "time-range"
	case KindNumberRange:
		return "number-range"
	default:
		return "contains"
	}
}

// KindFor suggests a constraint kind for a declared field.
func KindFor(f format.Field) Kind {
	switch {
	case len(f.Enum) > 0:
		return KindOneOf
	case f.Type == format.TypeDateTime:
		return KindTimeRange
	case f.Type == format.TypeNumber:
		return KindNumberRange
	default:
		return KindContains
	}
}
