// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

// =============================================================================
// ARGUMENT
// =============================================================================

// Result tells whether a parser accepted its input.
type Result int

const (
	Success Result = iota
	Fail
)

func (r Result) String() string {
	if r == Success {
		return "success"
	}
	return "fail"
}

// Argument is one bound parameter value together with the text that produced
// it. Value may be nil when parsing failed.
type Argument struct {
	Result Result
	Value  any

	// Text is the literal consumed from the command line. The dispatcher
	// fills it from the token unless the parser already set HasText.
	Text    string
	HasText bool
}

// Succeed returns a successful argument holding v.
func Succeed(v any) *Argument {
	return &Argument{Result: Success, Value: v}
}

// Failed returns a failed argument. v is usually nil or the zero value of
// the target type.
func Failed(v any) *Argument {
	return &Argument{Result: Fail, Value: v}
}

// WithText records the consumed text and returns the argument.
func (a *Argument) WithText(s string) *Argument {
	a.Text = s
	a.HasText = true
	return a
}

// OK reports whether the parser accepted the input.
func (a *Argument) OK() bool {
	return a != nil && a.Result == Success
}

// As returns the argument value as T.
func As[T any](a *Argument) (T, bool) {
	var zero T
	if a == nil {
		return zero, false
	}
	v, ok := a.Value.(T)
	return v, ok
}

// Raw is the parser input for one parameter slot.
type Raw struct {
	Text string

	// Absent is set when the command line ran out of tokens before this slot.
	Absent bool
}

// =============================================================================
// BOUND VALUES
// =============================================================================

// Values holds the bound parameters handed to a handler, sender excluded.
// Accessors return zero values for missing slots or mismatched types.
type Values []any

func (v Values) at(i int) any {
	if i < 0 || i >= len(v) {
		return nil
	}
	return v[i]
}

func (v Values) String(i int) string {
	s, _ := v.at(i).(string)
	return s
}

func (v Values) Int(i int) int {
	n, _ := v.at(i).(int)
	return n
}

func (v Values) Bool(i int) bool {
	b, _ := v.at(i).(bool)
	return b
}

func (v Values) Float(i int) float32 {
	f, _ := v.at(i).(float32)
	return f
}

func (v Values) Double(i int) float64 {
	f, _ := v.at(i).(float64)
	return f
}

// Argument returns the wrapped argument at i, or nil.
func (v Values) Argument(i int) *Argument {
	a, _ := v.at(i).(*Argument)
	return a
}

// Slice returns a plain collection parameter.
func (v Values) Slice(i int) []any {
	s, _ := v.at(i).([]any)
	return s
}

// Arguments returns a wrapped collection parameter.
func (v Values) Arguments(i int) []*Argument {
	s, _ := v.at(i).([]*Argument)
	return s
}

func (v Values) Strings(i int) []string {
	items := v.Slice(i)
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, _ := item.(string)
		out = append(out, s)
	}
	return out
}

func (v Values) Ints(i int) []int {
	items := v.Slice(i)
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, _ := item.(int)
		out = append(out, n)
	}
	return out
}

func (v Values) Doubles(i int) []float64 {
	items := v.Slice(i)
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, _ := item.(float64)
		out = append(out, f)
	}
	return out
}
