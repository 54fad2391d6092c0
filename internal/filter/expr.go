package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSpec builds a Spec from expressions of the form
//
//	field=a,b,c    OneOf
//	field~text     Contains
//	field>=value   lower bound
//	field<=value   upper bound
//
// Bound values are read as numbers when they parse as one and as times
// otherwise. Two bounds on the same field combine into one range.
func ParseSpec(exprs []string) (Spec, error) {
	spec := Spec{}
	for _, expr := range exprs {
		if err := spec.add(expr); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

func (s Spec) add(expr string) error {
	for _, op := range []string{">=", "<=", "~", "="} {
		field, value, ok := strings.Cut(expr, op)
		if !ok {
			continue
		}
		field = strings.TrimSpace(field)
		value = strings.TrimSpace(value)
		if field == "" {
			return fmt.Errorf("filter %q: missing field name", expr)
		}
		switch op {
		case "~":
			s[field] = Contains{Text: value}
		case "=":
			var values []string
			for _, v := range strings.Split(value, ",") {
				if v = strings.TrimSpace(v); v != "" {
					values = append(values, v)
				}
			}
			s[field] = OneOf{Values: values}
		default:
			return s.addBound(field, value, op == ">=")
		}
		return nil
	}
	return fmt.Errorf("filter %q: expected field=values, field~text, field>=value or field<=value", expr)
}

func (s Spec) addBound(field, value string, lower bool) error {
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		r, _ := s[field].(NumberRange)
		if lower {
			r.Min = &n
		} else {
			r.Max = &n
		}
		s[field] = r
		return nil
	}
	t, ok := ParseTime(value)
	if !ok {
		return fmt.Errorf("filter %s: %q is neither a number nor a time", field, value)
	}
	r, _ := s[field].(TimeRange)
	if lower {
		r.From = &t
	} else {
		r.To = &t
	}
	s[field] = r
	return nil
}

// Since returns a TimeRange starting at t.
func Since(t time.Time) TimeRange { return TimeRange{From: &t} }

// Until returns a TimeRange ending at t.
func Until(t time.Time) TimeRange { return TimeRange{To: &t} }
