// Package app is the application shell shared by the harvest binaries. It
// resolves configuration from files and flags, owns the logger, and drives
// the translate and benchmark runs, decoupled from the entrypoint that
// parsed the command line.
package app
