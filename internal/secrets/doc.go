// Package secrets redacts credentials from the output of external tools.
//
// vsce, gh and git occasionally echo tokens back in error messages, and that
// output is shown on the console and written to the debug log. Everything the
// pipeline displays from a child process passes through Redact first.
package secrets
