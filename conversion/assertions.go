package conversion

import (
	"encoding/json"
	"fmt"

	"github.com/ruteri/tdf-pipeline/interfaces"
)

// BuildAssertions parses every tdf_assertion_ attribute of an item in key order.
// One invalid declaration fails the whole item.
func BuildAssertions(attrs interfaces.Attributes) ([]interfaces.AssertionDeclaration, error) {
	keys := attrs.AssertionKeys()
	if len(keys) == 0 {
		return nil, nil
	}

	declarations := make([]interfaces.AssertionDeclaration, 0, len(keys))
	for _, key := range keys {
		raw, _ := attrs.Get(key)
		declaration, err := ParseAssertion(raw)
		if err != nil {
			return nil, interfaces.NewConfigurationError(err, "attribute %s", key)
		}
		declarations = append(declarations, declaration)
	}
	return declarations, nil
}

// ParseAssertion decodes a single JSON object into a validated AssertionDeclaration.
// Unknown enumeration text leaves the field unset, which validation then rejects.
func ParseAssertion(raw string) (interfaces.AssertionDeclaration, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return interfaces.AssertionDeclaration{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidAssertion, err)
	}
	if fields == nil {
		return interfaces.AssertionDeclaration{}, fmt.Errorf("%w: not a JSON object", interfaces.ErrInvalidAssertion)
	}

	id, _ := stringField(fields, "id")
	typ, _ := stringField(fields, "type")
	scope, _ := stringField(fields, "scope")
	state, _ := stringField(fields, "appliesToState")

	declaration := interfaces.AssertionDeclaration{
		ID:             id,
		Type:           interfaces.ParseAssertionType(typ),
		Scope:          interfaces.ParseAssertionScope(scope),
		AppliesToState: interfaces.ParseAppliesToState(state),
	}

	statement, hasStatement := fields["statement"].(map[string]any)
	format, hasFormat := "", false
	value, hasValue := "", false
	if hasStatement {
		format, hasFormat = stringField(statement, "format")
		value, hasValue = stringField(statement, "value")
	}

	switch {
	case declaration.Scope == interfaces.AssertionScopeUnset:
		return interfaces.AssertionDeclaration{}, invalid("scope is required")
	case !hasStatement:
		return interfaces.AssertionDeclaration{}, invalid("statement is required")
	case !hasFormat:
		return interfaces.AssertionDeclaration{}, invalid("statement format is required")
	case declaration.AppliesToState == interfaces.AppliesToStateUnset:
		return interfaces.AssertionDeclaration{}, invalid("appliesToState is required")
	case declaration.Type == interfaces.AssertionTypeUnset:
		return interfaces.AssertionDeclaration{}, invalid("type is required")
	case !hasValue:
		return interfaces.AssertionDeclaration{}, invalid("statement value is required")
	}

	declaration.Statement = interfaces.Statement{Value: value, Format: format}
	return declaration, nil
}

func stringField(fields map[string]any, name string) (string, bool) {
	s, ok := fields[name].(string)
	return s, ok
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", interfaces.ErrInvalidAssertion, msg)
}
