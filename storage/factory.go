package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

// StoreFactory creates item stores from URI strings.
type StoreFactory struct {
	log *slog.Logger
}

// NewStoreFactory creates a new factory instance.
func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	return &StoreFactory{log: logger}
}

// ItemStoreFor creates an item store from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - Local filesystem directory
//   - s3:// - Amazon S3 or compatible object storage
func (sf *StoreFactory) ItemStoreFor(uri string) (interfaces.ItemStore, error) {
	loc, err := interfaces.NewStoreLocation(uri)
	if err != nil {
		return nil, err
	}

	switch {
	case loc.IsFile():
		return sf.createFileStore(loc)
	case loc.IsS3():
		return sf.createS3Store(loc)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %s", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// createFileStore creates a filesystem store.
// URI format: file:///absolute/path or file://relative/path
func (sf *StoreFactory) createFileStore(loc interfaces.StoreLocation) (interfaces.ItemStore, error) {
	sf.log.Debug("Creating file store", slog.String("uri", loc.String()))

	dir := loc.Host + loc.Path
	if dir == "" {
		return nil, fmt.Errorf("%w: empty file path", interfaces.ErrInvalidLocationURI)
	}
	return NewFileStore(dir, sf.log)
}

// createS3Store creates an S3 or S3-compatible store.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
// Without embedded credentials the default AWS credential chain applies.
func (sf *StoreFactory) createS3Store(loc interfaces.StoreLocation) (interfaces.ItemStore, error) {
	sf.log.Debug("Creating S3 store", slog.String("uri", loc.String()))

	bucketName := loc.Host
	if bucketName == "" {
		return nil, fmt.Errorf("%w: missing bucket name", interfaces.ErrInvalidLocationURI)
	}

	region := loc.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if loc.User != nil {
		accessKey = loc.User.Username()
		secretKey, _ = loc.User.Password()
		sf.log.Debug("Using embedded S3 credentials")
	}

	return NewS3Store(bucketName, strings.TrimPrefix(loc.Path, "/"), region, loc.GetParam("endpoint"), accessKey, secretKey, sf.log)
}
