package format

import (
	"cmp"
	"errors"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// DefaultPreviewLines is the number of leading lines Detect inspects.
const DefaultPreviewLines = 50

// ErrInvalidDefinition is returned for a definition without an id or
// without patterns.
var ErrInvalidDefinition = errors.New("invalid format definition")

type entry struct {
	def      Definition
	patterns []*regexp.Regexp
	seq      int
}

// Registry holds format definitions. It is safe for concurrent use.
type Registry struct {
	previewLines int

	mu      sync.RWMutex
	byID    map[string]*entry
	ordered []*entry
	nextSeq int
}

// Option configures a Registry.
type Option func(*Registry)

// WithPreviewLines sets the number of lines Detect inspects.
func WithPreviewLines(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.previewLines = n
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{previewLines: DefaultPreviewLines, byID: map[string]*entry{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry returns a registry holding the built-in formats.
func NewDefaultRegistry(opts ...Option) *Registry {
	r := NewRegistry(opts...)
	if err := r.RegisterAll(Builtins()); err != nil {
		panic("format: invalid builtin: " + err.Error())
	}
	return r
}

// PreviewLines returns the number of lines Detect inspects.
func (r *Registry) PreviewLines() int { return r.previewLines }

// Register adds def, replacing any definition with the same id. A replaced
// definition keeps its original registration slot for priority ties. On
// error the registry is unchanged.
func (r *Registry) Register(def Definition) error {
	if strings.TrimSpace(def.ID) == "" || len(def.Patterns) == 0 {
		return ErrInvalidDefinition
	}
	compiled := make([]*regexp.Regexp, 0, len(def.Patterns))
	for _, p := range def.Patterns {
		re, err := compile(p)
		if err != nil {
			return &PatternError{FormatID: def.ID, Pattern: p, Err: err}
		}
		compiled = append(compiled, re)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e := &entry{def: def.clone(), patterns: compiled}
	if prev, ok := r.byID[def.ID]; ok {
		e.seq = prev.seq
	} else {
		e.seq = r.nextSeq
		r.nextSeq++
	}
	r.byID[def.ID] = e
	r.reorder()
	return nil
}

// RegisterAll registers defs in order, stopping at the first error.
func (r *Registry) RegisterAll(defs []Definition) error {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes the definition with the given id.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	r.reorder()
	return true
}

func (r *Registry) reorder() {
	r.ordered = r.ordered[:0]
	for _, e := range r.byID {
		r.ordered = append(r.ordered, e)
	}
	slices.SortFunc(r.ordered, func(a, b *entry) int {
		return cmp.Or(cmp.Compare(b.def.Priority, a.def.Priority), cmp.Compare(a.seq, b.seq))
	})
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return Definition{}, false
	}
	return e.def.clone(), true
}

// Formats returns all definitions in detection order.
func (r *Registry) Formats() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, len(r.ordered))
	for i, e := range r.ordered {
		out[i] = e.def.clone()
	}
	return out
}

// Fields returns the declared fields of the format, or nil when the id is
// unknown.
func (r *Registry) Fields(id string) []Field {
	def, ok := r.Get(id)
	if !ok {
		return nil
	}
	return def.Fields
}

// Detect returns the id of the format that best describes content.
func (r *Registry) Detect(content string) (string, bool) {
	sample := preview(content, r.previewLines)

	r.mu.RLock()
	ordered := slices.Clone(r.ordered)
	r.mu.RUnlock()

	for _, e := range ordered {
		if !e.matchesAny(sample) {
			continue
		}
		if e.def.Validate != nil && !e.def.Validate(content) {
			continue
		}
		return e.def.ID, true
	}
	return "", false
}

// Parse extracts fields from line using the format id. ok is false when the
// id is unknown or no pattern matches; the caller treats such a line as a
// continuation.
func (r *Registry) Parse(line, id string) (ParsedLine, bool) {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return ParsedLine{}, false
	}
	fields, ok := e.extract(line)
	if !ok {
		return ParsedLine{}, false
	}
	return ParsedLine{FormatID: id, Fields: fields, Raw: line}, true
}

// ParseAuto parses line with the highest-priority format that matches it.
func (r *Registry) ParseAuto(line string) (ParsedLine, bool) {
	r.mu.RLock()
	ordered := slices.Clone(r.ordered)
	r.mu.RUnlock()

	for _, e := range ordered {
		if fields, ok := e.extract(line); ok {
			return ParsedLine{FormatID: e.def.ID, Fields: fields, Raw: line}, true
		}
	}
	return ParsedLine{}, false
}

// ParseLine parses line with the format id, falling back to a continuation
// line when id is empty or the line does not match.
func (r *Registry) ParseLine(number int, line, id string) ParsedLine {
	if id != "" {
		if p, ok := r.Parse(line, id); ok {
			p.Number = number
			return p
		}
	}
	return Continuation(number, line)
}

func (e *entry) matchesAny(s string) bool {
	for _, re := range e.patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func (e *entry) extract(line string) (Fields, bool) {
	for _, re := range e.patterns {
		loc := re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		return e.collect(re, line, loc), true
	}
	return nil, false
}

// collect orders captured values by the declared field list, then appends
// any undeclared named groups in pattern order.
func (e *entry) collect(re *regexp.Regexp, line string, loc []int) Fields {
	captured := map[string]string{}
	var extra []string
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" || loc[2*i] < 0 {
			continue
		}
		if _, seen := captured[name]; seen {
			continue
		}
		captured[name] = line[loc[2*i]:loc[2*i+1]]
		if _, declared := e.def.Field(name); !declared {
			extra = append(extra, name)
		}
	}

	fields := make(Fields, 0, len(captured))
	for _, f := range e.def.Fields {
		if v, ok := captured[f.Name]; ok {
			fields = append(fields, FieldValue{Name: f.Name, Value: v})
		}
	}
	for _, name := range extra {
		fields = append(fields, FieldValue{Name: name, Value: captured[name]})
	}
	return fields
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?m)" + pattern)
}

// PreviewValidator returns a validator that matches expr against the first
// lines of the content.
func PreviewValidator(expr *regexp.Regexp, lines int) func(string) bool {
	return func(content string) bool {
		return expr.MatchString(preview(content, lines))
	}
}
