// Package cli provides common CLI utilities for voiceverify's command-line
// tools.
//
// This package includes:
//   - Output formatting (YAML by default, JSON, raw) via Output and
//     OutputBytes; FormatTable is declared but Output rejects it
//   - Print helpers for status messages, such as PrintSuccess
//   - Human-readable duration and byte-size formatting
//   - Terminal styles
//
// It holds no configuration or request-file loading of its own.
//
// Example usage:
//
//	// Output result
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
