// Package cmd implements the command-line interface of recstore. It provides a
// hierarchical command structure for working with records directly and for
// running the HTTP server.
//
// The package is organized into several subpackages:
//
//   - records: Commands for record operations (read, list, create, update, remove, perf)
//   - serve: Command for starting and configuring the HTTP server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See recstore --help for a list of all commands.
package cmd
