package pdf

import (
	"bytes"
	"compress/zlib"
	"crypto/md5"
	"fmt"
	"os"
)

// writer serializes a file as a fresh document: it walks the object graph
// from the catalog, renumbers everything it reaches, and emits nothing
// else. Redacted text, dropped images and scrubbed metadata are therefore
// absent from the output, not merely unreferenced.
type writer struct {
	f       *file
	byOld   map[int]int     // old object number -> new
	byPtr   map[*Stream]int // hoisted direct streams -> new
	objects []Object        // new objects, index 0 is object 1
}

func (f *file) save(path string) error {
	w := &writer{f: f, byOld: map[int]int{}, byPtr: map[*Stream]int{}}
	root, ok := f.trailer["Root"].(Ref)
	if !ok {
		return fmt.Errorf("trailer root is not a reference")
	}
	rootRef, err := w.visitRef(root)
	if err != nil {
		return err
	}
	out, err := w.render(rootRef)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func (w *writer) alloc() int {
	w.objects = append(w.objects, nil)
	return len(w.objects) // object numbers are 1-based
}

func (w *writer) visitRef(old Ref) (Ref, error) {
	if num, ok := w.byOld[old.Num]; ok {
		return Ref{Num: num}, nil
	}
	num := w.alloc()
	w.byOld[old.Num] = num
	obj, err := w.f.object(old.Num)
	if err != nil {
		return Ref{}, err
	}
	rewritten, err := w.visit(obj)
	if err != nil {
		return Ref{}, err
	}
	w.objects[num-1] = rewritten
	return Ref{Num: num}, nil
}

// visit rewrites an object graph node, renumbering references and hoisting
// direct streams into indirect objects of their own.
func (w *writer) visit(obj Object) (Object, error) {
	switch v := obj.(type) {
	case Ref:
		return w.visitRef(v)
	case Array:
		out := make(Array, len(v))
		for i, item := range v {
			r, err := w.visit(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case Dict:
		return w.visitDict(v)
	case *Stream:
		// Length is recomputed on encode; visiting a stale indirect
		// /Length would drag a dead object into the output.
		trimmed := make(Dict, len(v.Dict))
		for k, val := range v.Dict {
			if k != "Length" {
				trimmed[k] = val
			}
		}
		dict, err := w.visitDict(trimmed)
		if err != nil {
			return nil, err
		}
		return &Stream{Dict: dict, Data: v.Data, Decoded: v.Decoded}, nil
	default:
		return obj, nil
	}
}

func (w *writer) visitDict(d Dict) (Dict, error) {
	out := make(Dict, len(d))
	for k, v := range d {
		if stm, ok := v.(*Stream); ok {
			// Streams must be indirect objects.
			num, ok := w.byPtr[stm]
			if !ok {
				num = w.alloc()
				w.byPtr[stm] = num
				rewritten, err := w.visit(stm)
				if err != nil {
					return nil, err
				}
				w.objects[num-1] = rewritten
			}
			out[k] = Ref{Num: num}
			continue
		}
		r, err := w.visit(v)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	return out, nil
}

func (w *writer) render(root Ref) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	b.Write([]byte{'%', 0xe2, 0xe3, 0xcf, 0xd3, '\n'})

	offsets := make([]int, len(w.objects))
	for i, obj := range w.objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n", i+1)
		if stm, ok := obj.(*Stream); ok {
			if err := encodeStreamObject(&b, stm); err != nil {
				return nil, err
			}
		} else if obj != nil {
			obj.encode(&b)
		} else {
			Null{}.encode(&b)
		}
		b.WriteString("\nendobj\n")
	}

	xrefOff := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(w.objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}

	sum := md5.Sum(b.Bytes())
	trailer := Dict{
		"Size": Number(len(w.objects) + 1),
		"Root": root,
		"ID":   Array{HexString(sum[:]), HexString(sum[:])},
	}
	b.WriteString("trailer\n")
	trailer.encode(&b)
	fmt.Fprintf(&b, "\nstartxref\n%d\n%%%%EOF\n", xrefOff)
	return b.Bytes(), nil
}

// encodeStreamObject writes a stream, deflating decoded data and keeping
// raw data under its original filters.
func encodeStreamObject(b *bytes.Buffer, stm *Stream) error {
	dict := make(Dict, len(stm.Dict)+2)
	for k, v := range stm.Dict {
		dict[k] = v
	}
	data := stm.Data
	if stm.Decoded {
		var zb bytes.Buffer
		zw, err := zlib.NewWriterLevel(&zb, zlib.BestCompression)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = zb.Bytes()
		dict["Filter"] = Name("FlateDecode")
		delete(dict, "DecodeParms")
	}
	dict["Length"] = Number(len(data))
	dict.encode(b)
	b.WriteString("\nstream\n")
	b.Write(data)
	b.WriteString("\nendstream")
	return nil
}
