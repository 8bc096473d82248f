// Package api provides the REST surface of recstore. Every route maps to one
// record operation of the records package:
//
//	GET    /records/{kind}       list all records of a kind
//	POST   /records/{kind}       create a record, the id is allocated by the datastore
//	GET    /records/{kind}/{id}  read a record
//	PUT    /records/{kind}/{id}  create or replace the record with the given id
//	DELETE /records/{kind}/{id}  remove a record (204 No Content)
//	GET    /metrics              Prometheus metrics (only if enabled)
//
// Request and response bodies are JSON objects. Failures are answered with the
// status of the records.Error and a body of the form {"status": 404, "message": "Not found"}.
package api
