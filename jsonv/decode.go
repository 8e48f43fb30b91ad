package jsonv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/go-json-experiment/json/jsontext"
)

var ErrTrailingData = errors.New("unexpected data after top-level value")

// Parse decodes a single JSON document held in b.
func Parse(b []byte) (Value, error) {
	return Decode(bytes.NewReader(b))
}

// Decode reads exactly one JSON document from r. Object members keep their
// document order, which a map based decoding would lose, and repeated member
// names are all kept.
func Decode(r io.Reader) (Value, error) {
	dec := jsontext.NewDecoder(r, jsontext.AllowDuplicateNames(true))

	v, err := decodeValue(dec)
	if nil != err {
		return Value{}, fmt.Errorf("decode json value: %w", err)
	}

	switch _, err := dec.ReadToken(); {
	case errors.Is(err, io.EOF):
		return v, nil
	case nil == err:
		return Value{}, ErrTrailingData
	default:
		return Value{}, fmt.Errorf("decode json value: %w", err)
	}
}

func decodeValue(dec *jsontext.Decoder) (Value, error) {
	tok, err := dec.ReadToken()
	if nil != err {
		return Value{}, err
	}

	switch kind := tok.Kind(); kind {
	case 'n':
		return Null(), nil
	case 'f', 't':
		return Bool(tok.Bool()), nil
	case '"':
		return String(tok.String()), nil
	case '0':
		return Number(tok.String()), nil
	case '{':
		var obj Object
		for dec.PeekKind() != '}' {
			name, err := dec.ReadToken()
			if nil != err {
				return Value{}, err
			}
			// The token is only valid until the next read.
			key := name.String()

			val, err := decodeValue(dec)
			if nil != err {
				return Value{}, err
			}
			obj = append(obj, Member{Key: key, Value: val})
		}
		if _, err := dec.ReadToken(); nil != err {
			return Value{}, err
		}

		return Value{kind: KindObject, obj: obj}, nil
	case '[':
		var arr Array
		for dec.PeekKind() != ']' {
			val, err := decodeValue(dec)
			if nil != err {
				return Value{}, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.ReadToken(); nil != err {
			return Value{}, err
		}

		return Value{kind: KindArray, arr: arr}, nil
	default:
		return Value{}, fmt.Errorf("unexpected token kind %v", kind)
	}
}

// FromAny converts the output of a generic decoder (map[string]any, []any
// and scalars) into a Value. Map members are ordered by key since Go maps
// carry no order. Types outside the JSON data model become the invalid
// Value, which searches treat as contributing nothing.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case Object:
		return Obj(t...)
	case Array:
		return Arr(t...)
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		return Number(t.String())
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return Number(fmt.Sprint(t))
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		return Number(fmt.Sprint(t))
	case map[string]any:
		if nil == t {
			return Null()
		}
		var obj Object
		for _, k := range slices.Sorted(maps.Keys(t)) {
			obj = append(obj, Member{Key: k, Value: FromAny(t[k])})
		}

		return Value{kind: KindObject, obj: obj}
	case []any:
		if nil == t {
			return Null()
		}
		var arr Array
		for _, e := range t {
			arr = append(arr, FromAny(e))
		}

		return Value{kind: KindArray, arr: arr}
	default:
		return Value{}
	}
}
