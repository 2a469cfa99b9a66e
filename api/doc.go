/*
Package api defines the HTTP wire types of the conversion service and the
configuration of its HTTP server.

Items travel as JSON objects with their metadata attributes and a base64
payload:

	{"items": [{"id": "doc-1", "attributes": {"tdf_attribute": "https://example.com/attr/a/value/b"}, "payload": "aGVsbG8="}]}

Every submitted item comes back as exactly one outcome, in request order,
tagged with the route it was delivered to: success, failure or
exceeds_size_limit.

The client subpackage talks to a running server.
*/
package api
