package generic

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-yaml"
)

// maxDepth matches the nesting limit of encoding/json.
const maxDepth = 10000

// Parse strictly decodes a single JSON document, keeping object key order.
// Trailing data after the document and nesting deeper than maxDepth are errors.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return Value{}, err
		}
		return Value{}, fmt.Errorf("invalid character after top-level value at offset %d", dec.InputOffset())
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= maxDepth {
			return Value{}, fmt.Errorf("exceeded max nesting depth of %d", maxDepth)
		}
		switch t {
		case '{':
			return decodeObject(dec, depth+1)
		case '[':
			return decodeArray(dec, depth+1)
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", rune(t))
	case string:
		return Str(t), nil
	case json.Number:
		return Num(t), nil
	case bool:
		return Boolean(t), nil
	case nil:
		return Value{}, nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder, depth int) (Value, error) {
	m := NewMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is %T, not string", tok)
		}
		val, err := decodeValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		m.Set(key, val)
	}
	if err := closeDelim(dec, '}'); err != nil {
		return Value{}, err
	}
	return m, nil
}

func decodeArray(dec *json.Decoder, depth int) (Value, error) {
	items := []Value{}
	for dec.More() {
		val, err := decodeValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		items = append(items, val)
	}
	if err := closeDelim(dec, ']'); err != nil {
		return Value{}, err
	}
	return ListOf(items...), nil
}

func closeDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", rune(want), tok)
	}
	return nil
}

// MarshalJSON writes maps in insertion order and leaves HTML characters unescaped.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case StringKind:
		return writeString(buf, v.scalar)
	case NumberKind:
		buf.WriteString(v.scalar)
	case BoolKind:
		buf.WriteString(strconv.FormatBool(v.b))
	case MapKind:
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := v.obj.fields[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case ListKind:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		buf.WriteString("null")
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML keeps map key order by emitting yaml.MapSlice.
func (v Value) MarshalYAML() (interface{}, error) {
	return v.yamlValue(), nil
}

func (v Value) yamlValue() interface{} {
	switch v.kind {
	case StringKind:
		return v.scalar
	case NumberKind:
		if i, err := strconv.ParseInt(v.scalar, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(v.scalar, 64); err == nil {
			return f
		}
		return v.scalar
	case BoolKind:
		return v.b
	case MapKind:
		slice := make(yaml.MapSlice, 0, len(v.obj.keys))
		for _, k := range v.obj.keys {
			slice = append(slice, yaml.MapItem{Key: k, Value: v.obj.fields[k].yamlValue()})
		}
		return slice
	case ListKind:
		out := make([]interface{}, len(v.items))
		for i, item := range v.items {
			out[i] = item.yamlValue()
		}
		return out
	}
	return nil
}
