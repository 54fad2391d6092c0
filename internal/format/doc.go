// Package format classifies log content into named formats and extracts
// structured fields from individual lines.
//
// # Overview
//
// A Registry holds Definitions. Each Definition carries one or more regular
// expressions with named capture groups, a priority, the declared field list
// and an optional validator over the whole content. Registries are plain
// values owned by the caller; there is no process-wide registry.
//
// # Detection
//
// Detect looks at the first PreviewLines lines of the content and walks the
// definitions from highest to lowest priority (ties keep registration order).
// A definition wins when any of its patterns matches the preview and its
// validator, if present, accepts the full content. A rejecting validator
// moves detection on to the next definition. If nothing wins the content is
// of unknown format.
//
// # Parsing
//
// Parse applies one definition's patterns to a single line. The first pattern
// that matches supplies the fields from its named groups; optional groups
// that did not participate are omitted. A line no pattern matches is a
// continuation line: it belongs to the structured line above it.
//
// # Patterns
//
// Patterns use RE2 syntax as accepted by package regexp, compiled in
// multi-line mode. Named groups are written (?P<name>...) or (?<name>...).
// A pattern that fails to compile is rejected by Register with a
// *PatternError and never reaches Detect or Parse.
//
// # Seed Files
//
// LoadDefinitions reads additional definitions from a TOML or YAML document:
//
//	[[formats]]
//	id = "app"
//	name = "My App"
//	priority = 120
//	patterns = ['^(?P<level>[A-Z]+): (?P<message>.*)$']
//	validate = 'myapp'
//
//	[[formats.fields]]
//	name = "level"
//	type = "string"
//	enum = ["DEBUG", "INFO", "WARN", "ERROR"]
//
// The optional validate expression is matched against the first
// PreviewLines lines of the content.
package format
