package forms

import (
	"encoding/json"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		kind    Kind
		raw     string
		want    Value
		wantErr bool
	}{
		{kind: KindText, raw: "hello", want: TextValue("hello")},
		{kind: KindRadioGroup, raw: "Red", want: RadioValue("Red")},
		{kind: KindDropdown, raw: "CA", want: DropdownValue("CA")},
		{kind: KindCheckbox, raw: "on", want: CheckboxValue(true)},
		{kind: KindCheckbox, raw: " TRUE ", want: CheckboxValue(true)},
		{kind: KindCheckbox, raw: "1", want: CheckboxValue(true)},
		{kind: KindCheckbox, raw: "no", want: CheckboxValue(false)},
		{kind: KindCheckbox, raw: "", want: CheckboxValue(false)},
		{kind: KindCheckbox, raw: "maybe", wantErr: true},
		{kind: Kind(0), raw: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.raw, func(t *testing.T) {
			got, err := ParseValue(tt.kind, tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrKindMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueFromInterface(t *testing.T) {
	v, err := ValueFromInterface(KindCheckbox, true)
	require.NoError(t, err)
	assert.Equal(t, CheckboxValue(true), v)

	v, err = ValueFromInterface(KindText, "Alice")
	require.NoError(t, err)
	assert.Equal(t, TextValue("Alice"), v)

	_, err = ValueFromInterface(KindText, true)
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = ValueFromInterface(KindCheckbox, "true")
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = ValueFromInterface(KindText, 42.0)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestValue_JSON(t *testing.T) {
	values := map[string]Value{
		"Name":  TextValue(`say "hi"`),
		"Agree": CheckboxValue(true),
		"Color": RadioValue(""),
	}

	data, err := json.Marshal(values)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Name":"say \"hi\"","Agree":true,"Color":""}`, string(data))

	kind, err := json.Marshal(KindDropdown)
	require.NoError(t, err)
	assert.Equal(t, `"dropdown"`, string(kind))
}

func TestValue_Accessors(t *testing.T) {
	assert.Equal(t, "true", CheckboxValue(true).String())
	assert.True(t, CheckboxValue(true).Bool())
	assert.Equal(t, "x", TextValue("x").String())
	assert.Nil(t, Value{}.Interface())
	assert.Equal(t, "unknown", Value{}.Kind().String())
}

func TestEncodeText(t *testing.T) {
	lit, ok := encodeText(`a (b) \`).(types.StringLiteral)
	require.True(t, ok)
	assert.Equal(t, types.StringLiteral(`a \(b\) \\`), lit)

	hexed, ok := encodeText("é").(types.HexLiteral)
	require.True(t, ok)
	assert.Equal(t, types.HexLiteral("FEFF00E9"), hexed)
}
