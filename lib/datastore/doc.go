// Package datastore defines the client contract the record adapter talks to.
// It describes a key-value datastore holding entities that are grouped by kind
// and addressed by a numeric id, similar to Google Cloud Datastore.
//
// The package focuses on:
//   - A unified interface (Client) over different datastore backends
//   - Key, Entity, Property and Query value types shared by all backends
//   - Status-carrying errors so callers can report backend failures uniformly
//
// Key Components:
//
//   - Client Interface: Get, RunQuery, Save, Delete and Close. Save is an upsert;
//     saving under an incomplete key makes the client allocate a new id and return
//     the completed key.
//
//   - Error System: ErrNoSuchEntity signals a missing entity on Get. All other
//     failures may be wrapped with WithStatus; StatusOf extracts the code again and
//     also understands errors exposing HTTPStatusCode (AWS SDK response errors).
//
// Implementations:
//
//	- memds: in-memory client for tests and development
//	- boltds: embedded single-file client on top of bbolt
//	- gcds: Google Cloud Datastore
//	- dynamods: Amazon DynamoDB
//	- remoteds: another recstore server, through its HTTP api
//	- metered: decorator recording metrics for any other client
package datastore
