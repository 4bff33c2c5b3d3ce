package forms

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/unicode"
)

// Set applies v to the named field. The kind of v must match the field kind.
// Radio groups accept one of their options or "" to clear the selection;
// dropdowns accept one of their options unless the field is editable.
func (d *Document) Set(name string, v Value) error {
	n, ok := d.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	if v.Kind() != n.field.Kind {
		return fmt.Errorf("%w: %s field %q given %s value", ErrKindMismatch, n.field.Kind, name, v.Kind())
	}
	if n.field.ReadOnly {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}

	switch n.field.Kind {
	case KindText:
		if n.field.MaxLength > 0 && utf8.RuneCountInString(v.text) > n.field.MaxLength {
			return fmt.Errorf("%w: %q allows %d characters", ErrTooLong, name, n.field.MaxLength)
		}
		n.dict["V"] = encodeText(v.text)

	case KindCheckbox:
		state := "Off"
		if v.on {
			state = n.onState
		}
		n.dict["V"] = types.Name(state)
		for _, w := range n.widgets {
			ws := "Off"
			if v.on {
				if ws = d.onState(w.dict); ws == "" {
					ws = n.onState
				}
			}
			w.dict["AS"] = types.Name(ws)
		}

	case KindRadioGroup:
		if v.text != "" && !slices.Contains(n.field.Options, v.text) {
			return fmt.Errorf("%w: %q has no option %q", ErrInvalidOption, name, v.text)
		}
		state := v.text
		if state == "" {
			state = "Off"
		}
		n.dict["V"] = types.Name(state)
		for _, w := range n.widgets {
			ws := "Off"
			if d.onState(w.dict) == state {
				ws = state
			}
			w.dict["AS"] = types.Name(ws)
		}

	case KindDropdown:
		if v.text != "" && !n.field.Editable && !slices.Contains(n.field.Options, v.text) {
			return fmt.Errorf("%w: %q has no option %q", ErrInvalidOption, name, v.text)
		}
		n.dict["V"] = encodeText(v.text)
	}

	n.field.Value = v
	if d.acroForm != nil {
		d.acroForm["NeedAppearances"] = types.Boolean(true)
	}
	return nil
}

// encodeText encodes s as a PDF text string: a literal string when s is
// printable ASCII, otherwise UTF-16BE with byte order mark as a hex string.
func encodeText(s string) types.Object {
	if isPrintableASCII(s) {
		return types.StringLiteral(escapeLiteral(s))
	}
	b, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return types.StringLiteral(escapeLiteral(strings.ToValidUTF8(s, "?")))
	}
	return types.HexLiteral(strings.ToUpper(hex.EncodeToString(b)))
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
