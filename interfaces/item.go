package interfaces

import (
	"sort"
	"strings"
)

// AttributeKey names a metadata attribute carried by an Item.
type AttributeKey string

const (
	// KASURLAttribute holds a comma separated list of Key Access Service endpoints.
	// When present it replaces the operator default entirely.
	KASURLAttribute AttributeKey = "kas_url"

	// DataAttributesAttribute holds a comma separated list of policy attribute URIs.
	DataAttributesAttribute AttributeKey = "tdf_attribute"

	// AssertionAttributePrefix prefixes every assertion declaration attribute,
	// e.g. tdf_assertion_1, tdf_assertion_handling.
	AssertionAttributePrefix = "tdf_assertion_"

	// MIMETypeAttribute is set on successfully encrypted items.
	MIMETypeAttribute AttributeKey = "mime.type"

	// FilenameAttribute is preserved as-is and used by file based item stores.
	FilenameAttribute AttributeKey = "filename"
)

// Attributes is the read-only metadata of an Item.
// Lookups go through typed accessors; the backing map is never handed out.
type Attributes struct {
	values map[string]string
}

// NewAttributes copies the given map into an Attributes value.
func NewAttributes(values map[string]string) Attributes {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Attributes{values: copied}
}

// Get returns the attribute value and whether it was set.
func (a Attributes) Get(key AttributeKey) (string, bool) {
	v, ok := a.values[string(key)]
	return v, ok
}

// Len returns the number of attributes.
func (a Attributes) Len() int {
	return len(a.values)
}

// AssertionKeys returns the attribute keys carrying assertion declarations, sorted.
func (a Attributes) AssertionKeys() []AttributeKey {
	var keys []AttributeKey
	for k := range a.values {
		if strings.HasPrefix(k, AssertionAttributePrefix) {
			keys = append(keys, AttributeKey(k))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// With returns a copy of the attributes with key set to value.
func (a Attributes) With(key AttributeKey, value string) Attributes {
	copied := make(map[string]string, len(a.values)+1)
	for k, v := range a.values {
		copied[k] = v
	}
	copied[string(key)] = value
	return Attributes{values: copied}
}

// Map returns a copy of the attributes, used for serialization at the edges.
func (a Attributes) Map() map[string]string {
	copied := make(map[string]string, len(a.values))
	for k, v := range a.values {
		copied[k] = v
	}
	return copied
}

// Item is one opaque payload flowing through the pipeline together with its metadata.
type Item struct {
	ID         string
	Attributes Attributes
	Payload    []byte
}

// Size returns the payload length in bytes.
func (i Item) Size() int64 {
	return int64(len(i.Payload))
}

// Route is the outcome channel an item is delivered to.
type Route int

const (
	// RouteSuccess receives converted items.
	RouteSuccess Route = iota
	// RouteFailure receives items that could not be converted; their payload is untouched.
	RouteFailure
	// RouteSizeExceeded receives items too large for a size bounded container.
	RouteSizeExceeded
)

// String returns the route name.
func (r Route) String() string {
	switch r {
	case RouteSuccess:
		return "success"
	case RouteFailure:
		return "failure"
	case RouteSizeExceeded:
		return "exceeds_size_limit"
	default:
		return "unknown"
	}
}

// Routes lists every route in declaration order.
var Routes = []Route{RouteSuccess, RouteFailure, RouteSizeExceeded}

// Outcome is the routing decision for one item of a batch.
// On RouteSuccess Item carries the converted payload, otherwise the original one.
type Outcome struct {
	Item  Item
	Route Route
	Err   error
}
