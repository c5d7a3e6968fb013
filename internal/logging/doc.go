// Package logging configures slog for graphindex.
//
// By default records at the configured level go to stderr as text. With
// --debug, JSON records at debug level are also written to a size-rotated
// file under ~/.graphindex/logs/.
package logging
