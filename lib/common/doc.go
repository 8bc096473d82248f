// Package common provides the configuration structures and the logging setup
// shared by the command line tool, the HTTP server and the datastore backends.
//
// Key Components:
//
//   - ClientConfig: selects and configures the datastore backend (memory, bolt,
//     Cloud Datastore, DynamoDB or a remote recstore server) plus the default
//     kind and request timeout.
//
//   - ServerConfig: HTTP endpoint and metrics settings of the server, wrapping
//     the ClientConfig of the datastore it serves.
//
//   - Logger: custom implementation of dragonboat's logger.ILogger so all
//     packages log through logger.GetLogger with one consistent format.
package common
