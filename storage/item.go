package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

const attributesSuffix = ".attributes.json"

// ErrInvalidItemID is returned for ids that cannot be used as object names.
var ErrInvalidItemID = errors.New("invalid item id")

func attributesName(id string) string {
	return id + attributesSuffix
}

func isAttributesName(name string) bool {
	return strings.HasSuffix(name, attributesSuffix)
}

// validateID rejects ids that would escape the store or collide with metadata objects.
func validateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidItemID, id)
	case strings.ContainsAny(id, "/\\"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidItemID, id)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidItemID, id)
	case isAttributesName(id):
		return fmt.Errorf("%w: %q ends with %s", ErrInvalidItemID, id, attributesSuffix)
	}
	return nil
}

func encodeAttributes(attrs interfaces.Attributes) ([]byte, error) {
	return json.Marshal(attrs.Map())
}

func decodeAttributes(data []byte) (interfaces.Attributes, error) {
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return interfaces.Attributes{}, fmt.Errorf("invalid attributes: %w", err)
	}
	return interfaces.NewAttributes(values), nil
}
