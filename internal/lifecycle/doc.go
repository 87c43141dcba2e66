// Package lifecycle owns process termination.
//
// Components that hold unsaved state register a shutdown hook with a
// Manager. The first termination trigger runs every hook exactly once, in
// registration order:
//
//   - an interrupt, terminate or hang-up signal (Ctrl-Break on Windows is
//     delivered as an interrupt), after which the process exits
//   - an explicit Exit(code)
//   - Shutdown, called when main is about to return
//
// Later triggers are no-ops. Hook errors are joined and logged, and turn
// the exit code of a signal or Exit trigger into 1.
package lifecycle
