// Package app is the composition root for Lantern.
//
// # Startup
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()        config file, .env, LANTERN_* vars
//	       ├─────> prefs.Load()         theme, follow, recent locations
//	       ├─────> OpenSession()
//	       │         ├─> NewRegistry()  built-ins + formats_file
//	       │         ├─> source.Open()  file, stdin, http(s)://, s3://
//	       │         └─> session.Open() index + detect
//	       ├─────> session.Watch()      change monitor in the background
//	       └─────> ui.Run()             TUI (blocks)
//
// The command-line subcommands use NewRegistry and OpenSession directly and
// skip the TUI.
//
// # Errors
//
// Configuration, seed and source errors are returned from Run and end the
// program. Once the viewer is up, read failures are recorded in the state
// store and shown in the header while polling continues with backoff.
//
// # Logging
//
// The TUI owns the terminal, so Run logs to the configured log_file, or
// nowhere when none is set.
package app
