package ibus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// decodeText extracts the string of a serialized IBusText, signature
// (sa{sv}sv), usually wrapped in a variant. Attributes are ignored.
func decodeText(v any) (string, error) {
	if variant, ok := v.(dbus.Variant); ok {
		v = variant.Value()
	}
	fields, ok := v.([]any)
	if !ok || len(fields) < 3 {
		return "", fmt.Errorf("ibus: unexpected text value %T", v)
	}
	if name, _ := fields[0].(string); name != "IBusText" {
		return "", fmt.Errorf("ibus: unexpected serializable %q", name)
	}
	text, ok := fields[2].(string)
	if !ok {
		return "", fmt.Errorf("ibus: text field is %T", fields[2])
	}
	return text, nil
}
