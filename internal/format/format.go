package format

import (
	"fmt"
	"slices"
	"strings"
)

// Type is the value type of a field.
type Type string

const (
	TypeString   Type = "string"
	TypeNumber   Type = "number"
	TypeDateTime Type = "datetime"
	TypeDate     Type = "date"
	TypeTime     Type = "time"
	TypeDuration Type = "duration"
)

// Field describes one named capture group of a format.
type Field struct {
	Name        string
	Description string
	Type        Type
	Optional    bool
	// Enum lists the known values of the field, if it has a closed set.
	Enum []string
}

// Definition is a named, prioritised recipe for recognising and decomposing
// log lines. Definitions are immutable once registered.
type Definition struct {
	ID          string
	Name        string
	Description string
	Priority    int
	Patterns    []string
	Fields      []Field
	// Validate, when set, must accept the full content for Detect to pick
	// this definition.
	Validate func(content string) bool
}

// Field returns the declared field called name.
func (d Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DisplayName returns Name, or ID when Name is empty.
func (d Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

func (d Definition) clone() Definition {
	d.Patterns = slices.Clone(d.Patterns)
	fields := make([]Field, len(d.Fields))
	for i, f := range d.Fields {
		f.Enum = slices.Clone(f.Enum)
		fields[i] = f
	}
	d.Fields = fields
	return d
}

// FieldValue is one extracted field.
type FieldValue struct {
	Name  string
	Value string
}

// Fields is an ordered set of extracted values.
type Fields []FieldValue

// Get returns the value of the named field.
func (fs Fields) Get(name string) (string, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Names returns the field names in order.
func (fs Fields) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Map returns the fields as a map.
func (fs Fields) Map() map[string]string {
	m := make(map[string]string, len(fs))
	for _, f := range fs {
		m[f.Name] = f.Value
	}
	return m
}

// ParsedLine is a raw line plus, when it matched a format, its fields. An
// empty FormatID marks a continuation line, which never carries fields.
type ParsedLine struct {
	Number   int
	FormatID string
	Fields   Fields
	Raw      string
}

// Structured reports whether the line matched a format.
func (p ParsedLine) Structured() bool { return p.FormatID != "" }

// Continuation returns an unstructured ParsedLine.
func Continuation(number int, raw string) ParsedLine {
	return ParsedLine{Number: number, Raw: raw}
}

// MissingFields returns the required fields of def that p does not carry.
func MissingFields(def Definition, p ParsedLine) []string {
	var missing []string
	for _, f := range def.Fields {
		if f.Optional {
			continue
		}
		if _, ok := p.Fields.Get(f.Name); !ok {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// PatternError reports a pattern that could not be compiled.
type PatternError struct {
	FormatID string
	Pattern  string
	Err      error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("format %s: compile pattern %q: %v", e.FormatID, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// preview returns the first n lines of content joined with "\n". Both "\n"
// and "\r\n" terminators are accepted.
func preview(content string, n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	rest := content
	for i := 0; i < n; i++ {
		line, tail, found := strings.Cut(rest, "\n")
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimSuffix(line, "\r"))
		if !found {
			break
		}
		rest = tail
	}
	return b.String()
}
