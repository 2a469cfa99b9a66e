// Package storage provides item stores feeding and receiving the conversion pipeline.
//
// An item is persisted as two objects:
//
//	<id>                  payload bytes
//	<id>.attributes.json  metadata as a JSON object of strings
//
// Stores list payload objects only, so an item becomes visible once its payload
// is written. The metadata object is written first.
//
// # Storage URI Format
//
// Stores are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/tdf/inbox
//   - s3://bucket-name/prefix/?region=us-west-2
//   - s3://ACCESS_KEY:SECRET_KEY@bucket-name/prefix/?region=us-west-2&endpoint=minio.local:9000
//
// # Usage Example
//
//	factory := storage.NewStoreFactory(logger)
//	inbox, err := factory.ItemStoreFor("file:///var/lib/tdf/inbox")
//	if err != nil {
//	    log.Fatalf("Failed to create store: %v", err)
//	}
//
//	ids, err := inbox.List(ctx, 10)
//	item, err := inbox.Fetch(ctx, ids[0])
package storage
