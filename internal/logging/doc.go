// Package logging provides the structured logger used across coldfetch.
//
// Library packages accept a Logger and default to Noop; binaries build a
// zerolog-backed Logger with New.
package logging
