package forms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies one of the supported AcroForm field kinds
type Kind int

const (
	KindText Kind = iota + 1
	KindCheckbox
	KindRadioGroup
	KindDropdown
)

// String returns the kind name used in JSON output and tool responses
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCheckbox:
		return "checkbox"
	case KindRadioGroup:
		return "radio"
	case KindDropdown:
		return "dropdown"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Value is the current value of a field. The zero Value has no kind and is
// never accepted by Document.Set.
type Value struct {
	kind Kind
	text string
	on   bool
}

// TextValue returns a value for a text field
func TextValue(s string) Value { return Value{kind: KindText, text: s} }

// CheckboxValue returns a value for a checkbox
func CheckboxValue(checked bool) Value { return Value{kind: KindCheckbox, on: checked} }

// RadioValue returns a value selecting option in a radio group
func RadioValue(option string) Value { return Value{kind: KindRadioGroup, text: option} }

// DropdownValue returns a value selecting option in a dropdown
func DropdownValue(option string) Value { return Value{kind: KindDropdown, text: option} }

// Kind reports which field kind the value belongs to
func (v Value) Kind() Kind { return v.kind }

// String returns the text or selected option. Checkbox values render as
// "true" or "false".
func (v Value) String() string {
	if v.kind == KindCheckbox {
		return strconv.FormatBool(v.on)
	}
	return v.text
}

// Bool returns the checked state of a checkbox value
func (v Value) Bool() bool { return v.on }

// Interface returns the value as a string or bool, suitable for JSON
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindCheckbox:
		return v.on
	case KindText, KindRadioGroup, KindDropdown:
		return v.text
	default:
		return nil
	}
}

// MarshalJSON encodes the value as a JSON string or boolean
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindCheckbox:
		return []byte(strconv.FormatBool(v.on)), nil
	case KindText, KindRadioGroup, KindDropdown:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// ParseValue converts raw user input into a value of the given kind.
// Checkbox input accepts true/false, on/off, yes/no and 1/0.
func ParseValue(kind Kind, raw string) (Value, error) {
	switch kind {
	case KindText:
		return TextValue(raw), nil
	case KindRadioGroup:
		return RadioValue(raw), nil
	case KindDropdown:
		return DropdownValue(raw), nil
	case KindCheckbox:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "on", "yes", "1", "checked":
			return CheckboxValue(true), nil
		case "false", "off", "no", "0", "":
			return CheckboxValue(false), nil
		}
		return Value{}, fmt.Errorf("%w: %q is not a checkbox state", ErrKindMismatch, raw)
	default:
		return Value{}, fmt.Errorf("%w: unsupported kind %d", ErrKindMismatch, kind)
	}
}

// ValueFromInterface converts a decoded JSON value into a value of the given
// kind. Booleans are only accepted for checkboxes and strings for the others.
func ValueFromInterface(kind Kind, raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case bool:
		if kind != KindCheckbox {
			return Value{}, fmt.Errorf("%w: boolean given for %s field", ErrKindMismatch, kind)
		}
		return CheckboxValue(x), nil
	case string:
		if kind == KindCheckbox {
			return Value{}, fmt.Errorf("%w: string given for checkbox field", ErrKindMismatch)
		}
		return ParseValue(kind, x)
	default:
		return Value{}, fmt.Errorf("%w: unsupported value type %T", ErrKindMismatch, raw)
	}
}
