// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuiltinParsers(t *testing.T) {
	d := New()

	tests := []struct {
		typ    TypeKey
		raw    Raw
		result Result
		value  any
	}{
		{TypeString, Raw{Text: "koala"}, Success, "koala"},
		{TypeString, Raw{Text: ""}, Success, ""},
		{TypeString, Raw{Absent: true}, Fail, nil},
		{TypeInt, Raw{Text: "36"}, Success, 36},
		{TypeInt, Raw{Text: "-4"}, Success, -4},
		{TypeInt, Raw{Text: "4.5"}, Fail, 0},
		{TypeInt, Raw{Absent: true}, Fail, 0},
		{TypeBool, Raw{Text: "TRUE"}, Success, true},
		{TypeBool, Raw{Text: "off"}, Success, false},
		{TypeBool, Raw{Text: "maybe"}, Fail, false},
		{TypeFloat, Raw{Text: "1.5"}, Success, float32(1.5)},
		{TypeFloat, Raw{Text: "x"}, Fail, float32(0)},
		{TypeDouble, Raw{Text: "2.25"}, Success, 2.25},
		{TypeDouble, Raw{Absent: true}, Fail, 0.0},
	}

	for _, tt := range tests {
		arg := d.parsers[tt.typ].ParseArgument(nil, 0, tt.raw)
		assert.Equal(t, tt.result, arg.Result, "%s %+v", tt.typ, tt.raw)
		assert.Equal(t, tt.value, arg.Value, "%s %+v", tt.typ, tt.raw)
		assert.False(t, arg.HasText)
	}
}

func TestEnumParser(t *testing.T) {
	p := EnumParser("Survival", "Creative")

	arg := p.ParseArgument(nil, 0, Raw{Text: "creative"})
	assert.True(t, arg.OK())
	assert.Equal(t, "Creative", arg.Value)

	assert.False(t, p.ParseArgument(nil, 0, Raw{Text: "hardcore"}).OK())
	assert.False(t, p.ParseArgument(nil, 0, Raw{Absent: true}).OK())
}

func TestArgumentHelpers(t *testing.T) {
	arg := Succeed(42).WithText("forty-two")
	n, ok := As[int](arg)
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	assert.Equal(t, "forty-two", arg.Text)

	_, ok = As[string](arg)
	assert.False(t, ok)
	_, ok = As[int](nil)
	assert.False(t, ok)

	var nilArg *Argument
	assert.False(t, nilArg.OK())
	assert.Equal(t, "fail", Failed(nil).Result.String())
}

func TestValuesAccessors(t *testing.T) {
	v := Values{"a", 3, true, float32(1.5), 2.5, Succeed("w"), []any{"x", "y"}, []*Argument{Succeed(1)}}

	assert.Equal(t, "a", v.String(0))
	assert.Equal(t, 3, v.Int(1))
	assert.True(t, v.Bool(2))
	assert.Equal(t, float32(1.5), v.Float(3))
	assert.Equal(t, 2.5, v.Double(4))
	assert.Equal(t, "w", v.Argument(5).Value)
	assert.Equal(t, []string{"x", "y"}, v.Strings(6))
	assert.Len(t, v.Arguments(7), 1)

	// out of range and mismatched types yield zero values
	assert.Equal(t, "", v.String(1))
	assert.Equal(t, 0, v.Int(99))
	assert.Nil(t, v.Argument(-1))
	assert.Empty(t, v.Ints(0))
}
