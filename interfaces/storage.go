package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// StoreLocation represents the URI of an item store.
type StoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname or bucket
	Path   string     // Resource path
	Query  url.Values // Query parameters
	User   *url.Userinfo
}

// NewStoreLocation parses and validates an item store URI.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3":
	default:
		return StoreLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StoreLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		User:   parsed.User,
	}, nil
}

// String returns the original URI string.
func (loc StoreLocation) String() string {
	return loc.Raw
}

// IsFile checks if this is a file system location.
func (loc StoreLocation) IsFile() bool {
	return loc.Scheme == "file"
}

// IsS3 checks if this is an S3 location.
func (loc StoreLocation) IsS3() bool {
	return loc.Scheme == "s3"
}

// GetParam returns a query parameter value.
func (loc StoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

var (
	// ErrBackendUnavailable is returned when a store is not accessible.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a store URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// ItemStore holds items waiting for conversion or delivered to an outcome.
type ItemStore interface {
	// List returns up to limit item ids in a stable order.
	List(ctx context.Context, limit int) ([]string, error)

	// Fetch loads an item. Returns ErrItemNotFound for unknown ids.
	Fetch(ctx context.Context, id string) (Item, error)

	// Store saves an item under its ID, replacing any previous version.
	Store(ctx context.Context, item Item) error

	// Delete removes an item. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this store.
	LocationURI() string
}

// BatchConverter converts a batch of items, routing each one to exactly one outcome.
// A non-nil error means the batch could not start and no item was routed.
type BatchConverter interface {
	Convert(ctx context.Context, batch []Item) ([]Outcome, error)
}

// MetadataError is returned by ItemStore.Fetch when the payload was read but
// the attributes could not be decoded. Item holds the payload without attributes.
type MetadataError struct {
	Item Item
	Err  error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("item %s: unreadable metadata: %v", e.Item.ID, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}
