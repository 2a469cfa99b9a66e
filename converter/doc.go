// Package converter runs batches of items through the SDK client.
//
// Encryptor and Decryptor implement interfaces.BatchConverter for one container
// format each. Every item of a batch ends in exactly one route:
//
//	Pending -> ConfigBuilt -> Converted -> Routed(success)
//	        \-> Routed(failure)          (configuration or SDK error)
//	        \-> Routed(exceeds_size_limit) (encrypt, size bounded formats only)
//
// Item failures never abort the batch. Errors that prevent any item from being
// processed, such as a failed client build or an unloadable verification key,
// are returned from Convert and no outcome is produced.
package converter
