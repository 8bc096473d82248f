// Package testing provides a conformance test suite for datastore.Client
// implementations. Every backend in this module runs the same suite so that
// the record adapter can rely on identical semantics regardless of where the
// entities are stored.
//
// Usage:
//
//	func TestMyClient(t *testing.T) {
//		dstesting.RunClientTests(t, "myclient", func() datastore.Client {
//			return myclient.New()
//		})
//	}
//
// The suite covers id allocation, explicit ids, upsert semantics, missing
// entities, kind isolation, deletes, the supported value types
// (string, int64, float64, bool) and concurrent id allocation.
package testing
