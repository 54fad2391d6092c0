// Package filter selects the visible subset of parsed log lines.
//
// A Spec maps field names to constraints. A structured line passes when every
// active constraint on a field the line carries accepts the value; fields the
// line does not have are skipped. Continuation lines (stack trace frames and
// other lines no pattern matched) have no fields of their own and follow the
// decision made for the nearest structured line above them. Continuation
// lines that appear before the first structured line are dropped while a
// filter is active.
//
// Constraint kinds:
//
//	TimeRange    inclusive time bounds, either side optional
//	NumberRange  inclusive numeric bounds, either side optional
//	OneOf        case-insensitive membership
//	Contains     case-insensitive substring
//
// A value that cannot be parsed as a time or number passes the respective
// range constraint. Apply and Count are pure functions of their inputs; a
// Matcher applies the same rules incrementally to a stream of lines.
package filter
