// Package records translates between application records and datastore
// entities and offers the four operations applications need on them:
// Read, List, Update and Remove.
//
// A Record is a plain map with the entity id inlined under the "id" field.
// FromDatastore and ToDatastore convert between the two shapes; ToDatastore
// drops nil-valued fields and can mark fields as excluded from indexes.
//
// Every operation takes a Ref naming the datastore client and the kind to work
// on. The package holds no state of its own, all durability, id allocation and
// consistency guarantees come from the client.
//
// Errors are always *Error values carrying an HTTP-like status:
//
//	400  the id is not a positive integer
//	404  Read found no entity for the id
//	xxx  the client failed, status taken from the client error (default 500)
//
// Usage:
//
//	ref := records.Ref{Client: memds.New(), Kind: "Book"}
//	book, err := records.Update(ctx, ref, "", records.Record{"title": "Dune"})
//	// book["id"] now holds the allocated id
package records
