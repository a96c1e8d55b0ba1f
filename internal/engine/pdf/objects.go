package pdf

import (
	"bytes"
	"fmt"
	"strconv"
)

// Object is any value that can appear in a PDF file body.
type Object interface {
	encode(b *bytes.Buffer)
}

// Null is the PDF null value.
type Null struct{}

func (Null) encode(b *bytes.Buffer) { b.WriteString("null") }

// Bool is a PDF boolean.
type Bool bool

func (v Bool) encode(b *bytes.Buffer) {
	if v {
		b.WriteString("true")
	} else {
		b.WriteString("false")
	}
}

// Number is a PDF integer or real.
type Number float64

func (n Number) encode(b *bytes.Buffer) {
	f := float64(n)
	if f == float64(int64(f)) {
		b.WriteString(strconv.FormatInt(int64(f), 10))
		return
	}
	b.WriteString(strconv.FormatFloat(f, 'f', 4, 64))
}

// Name is a PDF name. The leading slash is not stored.
type Name string

func (n Name) encode(b *bytes.Buffer) {
	b.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c <= ' ' || c == '/' || c == '#' || c == '(' || c == ')' || c == '<' || c == '>' || c == '[' || c == ']' || c > '~' {
			fmt.Fprintf(b, "#%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
}

// String is a PDF string. Raw bytes, not necessarily valid UTF-8.
type String []byte

func (s String) encode(b *bytes.Buffer) {
	b.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
}

// HexString is a PDF hex-encoded string. It compares equal to the
// equivalent literal String once decoded; the engine emits rebuilt show
// strings in hex form to avoid escaping concerns.
type HexString []byte

func (h HexString) encode(b *bytes.Buffer) {
	fmt.Fprintf(b, "<%X>", []byte(h))
}

// Array is a PDF array.
type Array []Object

func (a Array) encode(b *bytes.Buffer) {
	b.WriteByte('[')
	for i, obj := range a {
		if i > 0 {
			b.WriteByte(' ')
		}
		obj.encode(b)
	}
	b.WriteByte(']')
}

// Dict is a PDF dictionary keyed by name (without the slash).
type Dict map[Name]Object

func (d Dict) encode(b *bytes.Buffer) {
	b.WriteString("<<")
	for _, k := range sortedKeys(d) {
		b.WriteByte(' ')
		k.encode(b)
		b.WriteByte(' ')
		d[k].encode(b)
	}
	b.WriteString(" >>")
}

// Ref is an indirect reference ("12 0 R").
type Ref struct {
	Num, Gen int
}

func (r Ref) encode(b *bytes.Buffer) {
	fmt.Fprintf(b, "%d %d R", r.Num, r.Gen)
}

// Stream is a dictionary with attached data. Decoded reports whether Data
// holds the decoded bytes (the reader inflates single-Flate streams); raw
// streams keep their original filter entries and pass through untouched.
type Stream struct {
	Dict    Dict
	Data    []byte
	Decoded bool
}

func (s *Stream) encode(b *bytes.Buffer) {
	// Streams are always written as indirect objects; the writer hoists
	// them and encodes the body itself. Encoding one inline is a bug.
	panic("pdf: stream encoded as a direct object")
}

// keyword is a bare token such as "obj", "stream" or a content-stream
// operator. It never appears inside document object graphs.
type keyword string

func (k keyword) encode(b *bytes.Buffer) { b.WriteString(string(k)) }

func sortedKeys(d Dict) []Name {
	keys := make([]Name, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// Encode serializes obj to a byte slice.
func Encode(obj Object) []byte {
	var b bytes.Buffer
	obj.encode(&b)
	return b.Bytes()
}

// Convenience accessors. All tolerate missing keys and wrong types by
// returning the zero value and false.

func dictName(d Dict, key Name) (Name, bool) {
	n, ok := d[key].(Name)
	return n, ok
}

func dictNumber(d Dict, key Name) (float64, bool) {
	n, ok := d[key].(Number)
	return float64(n), ok
}

func dictInt(d Dict, key Name) (int, bool) {
	n, ok := d[key].(Number)
	return int(n), ok
}

func stringBytes(obj Object) ([]byte, bool) {
	switch v := obj.(type) {
	case String:
		return []byte(v), true
	case HexString:
		return []byte(v), true
	}
	return nil, false
}

func numberValue(obj Object) float64 {
	if n, ok := obj.(Number); ok {
		return float64(n)
	}
	return 0
}
