package conversion

import (
	"strings"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

// ResolveKASEndpoints returns the KAS endpoints of an item.
// A kas_url attribute, even an empty one, fully overrides defaultEndpoint.
func ResolveKASEndpoints(attrs interfaces.Attributes, defaultEndpoint string) (interfaces.KASEndpointList, error) {
	source, ok := attrs.Get(interfaces.KASURLAttribute)
	if !ok {
		if defaultEndpoint == "" {
			return nil, interfaces.NewConfigurationError(interfaces.ErrMissingKASEndpoint,
				"no %s attribute and no default KAS endpoint configured", interfaces.KASURLAttribute)
		}
		source = defaultEndpoint
	}

	endpoints := interfaces.KASEndpointList(splitList(source))
	if len(endpoints) == 0 {
		return nil, interfaces.NewConfigurationError(interfaces.ErrNoKASEndpoints, "")
	}
	return endpoints, nil
}

// ResolveDataAttributes returns the data attribute set of an item. A missing
// tdf_attribute attribute is treated as empty.
func ResolveDataAttributes(attrs interfaces.Attributes) (interfaces.DataAttributeSet, error) {
	source, _ := attrs.Get(interfaces.DataAttributesAttribute)
	set := interfaces.NewDataAttributeSet(splitList(source)...)
	if set.Len() == 0 {
		return interfaces.DataAttributeSet{}, interfaces.NewConfigurationError(interfaces.ErrNoDataAttributes,
			"nothing provided via %s", interfaces.DataAttributesAttribute)
	}
	return set, nil
}

// splitList splits a comma separated list, dropping empty segments.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
