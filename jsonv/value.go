// Package jsonv holds an order-preserving representation of decoded JSON
// documents and a lazy, depth-first key search over them.
package jsonv

import (
	"math"
	"strconv"
)

type Kind uint8

const (
	// KindInvalid is the zero Kind. It marks values that did not come from a
	// JSON document (see FromAny) and is skipped by every traversal.
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "invalid"
	}
}

// IsScalar reports whether k is one of null, bool, number or string.
func (k Kind) IsScalar() bool {
	return k >= KindNull && k <= KindString
}

// IsContainer reports whether k is an object or an array.
func (k Kind) IsContainer() bool {
	return k == KindObject || k == KindArray
}

// Member is a single key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Object keeps members in the order they were decoded or constructed.
type Object []Member

// Get returns the value of the first member named key.
func (o Object) Get(key string) (Value, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}

	return Value{}, false
}

type Array []Value

// Value is a tagged union over the JSON data model. The zero Value is of
// KindInvalid.
type Value struct {
	kind Kind
	b    bool
	// s holds the string for KindString and the literal for KindNumber.
	s   string
	obj Object
	arr Array
}

func Null() Value {
	return Value{kind: KindNull}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number wraps a JSON number literal as-is. The literal is parsed lazily by
// the numeric accessors.
func Number(literal string) Value {
	return Value{kind: KindNumber, s: literal}
}

func Int(n int64) Value {
	return Number(strconv.FormatInt(n, 10))
}

func Float(f float64) Value {
	return Number(strconv.FormatFloat(f, 'g', -1, 64))
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Obj(members ...Member) Value {
	return Value{kind: KindObject, obj: members}
}

func Arr(values ...Value) Value {
	return Value{kind: KindArray, arr: values}
}

// M is shorthand for constructing a Member.
func M(key string, v Value) Member {
	return Member{Key: key, Value: v}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}

	return v.b, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}

	return v.s, true
}

// AsInt64 returns the number as an int64. Literals with a fractional part or
// an exponent are accepted when they denote a whole number within range.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}

	if n, err := strconv.ParseInt(v.s, 10, 64); nil == err {
		return n, true
	}

	f, err := strconv.ParseFloat(v.s, 64)
	if nil != err || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}

	return int64(f), true
}

// Literal returns the raw number literal of a KindNumber value.
func (v Value) Literal() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}

	return v.s, true
}

func (v Value) AsObject() (Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}

	return v.obj, true
}

func (v Value) AsArray() (Array, bool) {
	if v.kind != KindArray {
		return nil, false
	}

	return v.arr, true
}

// Get looks up key among the direct members of an object. It reports false
// for non-object values and missing keys alike.
func (v Value) Get(key string) (Value, bool) {
	obj, ok := v.AsObject()
	if !ok {
		return Value{}, false
	}

	return obj.Get(key)
}

// Index returns the i-th element of an array.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}

	return v.arr[i], true
}

// Field is Get for chained lookups: anything missing along the way is the
// invalid Value.
func (v Value) Field(key string) Value {
	found, _ := v.Get(key)

	return found
}

func (v Value) At(i int) Value {
	found, _ := v.Index(i)

	return found
}

// Len returns the number of members or elements of a container, and zero
// for everything else.
func (v Value) Len() int {
	switch v.kind {
	case KindObject:
		return len(v.obj)
	case KindArray:
		return len(v.arr)
	default:
		return 0
	}
}
