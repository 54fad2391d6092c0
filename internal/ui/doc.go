// Package ui implements Lantern's terminal viewer on Bubble Tea.
//
// The model never holds more than one screen of lines. Every scroll, filter
// change or follow-mode refresh issues a window request to the session, which
// reads the lines through the index; responses carry a sequence number so a
// slow read cannot overwrite a newer one.
//
// # Layout
//
//	┌──────────────────────────────────────────────────────────┐
//	│ lantern  app.log  hdfs  Lines: 10422  ● FOLLOW           │ header
//	├──────────────────────────────────────────────────────────┤
//	│ 10391 2015-10-18 18:01:47,978 ERROR ...                  │
//	│ 10392 java.lang.IllegalStateException: boom             │ line pane
//	│  ...                                                     │
//	├──────────────────────────────────────────────────────────┤
//	│ 10391-10422 of 10422 │ filter: level=ERROR │ h/? help    │ status bar
//	└──────────────────────────────────────────────────────────┘
//
// # Filtering
//
// "f" opens an expression input parsed by filter.ParseSpec, "L" cycles a
// single-value filter over the enumerated values of the format's level
// field, and "/" searches raw text with a case-insensitive regex. Filters
// hide lines; search only moves the pane and highlights matches.
//
// Continuation lines follow the structured line above them, including one
// that has scrolled off the top of the pane.
//
// # State
//
// The status shown in the header comes from state.Store snapshots fetched on
// every tick. A change in the line count triggers a reload, which in follow
// mode pins the pane to the end of the source.
package ui
