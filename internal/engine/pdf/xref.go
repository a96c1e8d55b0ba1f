package pdf

import (
	"bytes"
	"fmt"
	"strconv"
)

// xrefEntry locates one object, either directly in the file or inside an
// object stream.
type xrefEntry struct {
	offset    int64
	gen       int
	inStream  bool
	streamNum int
	streamIdx int
	free      bool
}

// parseXref walks the cross-reference chain from the trailing startxref,
// following /Prev (and hybrid /XRefStm) links. Earlier sections win, so
// incremental updates override the original entries.
func (f *file) parseXref() error {
	off, err := f.findStartXref()
	if err != nil {
		return err
	}
	f.xref = map[int]xrefEntry{}
	seen := map[int64]bool{}
	for off >= 0 {
		if seen[off] || off >= int64(len(f.data)) {
			return fmt.Errorf("cross-reference chain is cyclic or out of range at %d", off)
		}
		seen[off] = true
		trailer, err := f.parseXrefSection(off)
		if err != nil {
			return err
		}
		for k, v := range trailer {
			if _, done := f.trailer[k]; !done {
				f.trailer[k] = v
			}
		}
		// Hybrid files point at an xref stream whose trailer adds nothing.
		if stm, ok := trailer["XRefStm"].(Number); ok {
			if _, err := f.parseXrefSection(int64(stm)); err != nil {
				return err
			}
		}
		if prev, ok := trailer["Prev"].(Number); ok {
			off = int64(prev)
		} else {
			off = -1
		}
	}
	if _, ok := f.trailer["Root"]; !ok {
		return fmt.Errorf("trailer has no document catalog")
	}
	return nil
}

func (f *file) findStartXref() (int64, error) {
	tail := f.data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, fmt.Errorf("startxref marker not found")
	}
	lx := newLexer(tail[i+len("startxref"):])
	lx.skipSpace()
	v, isInt, err := lx.readNumber()
	if err != nil || !isInt {
		return 0, fmt.Errorf("startxref offset is not an integer")
	}
	return int64(v), nil
}

func (f *file) parseXrefSection(off int64) (Dict, error) {
	lx := newLexer(f.data)
	lx.pos = int(off)
	lx.skipSpace()
	if bytes.HasPrefix(f.data[lx.pos:], []byte("xref")) {
		lx.pos += len("xref")
		return f.parseXrefTable(lx)
	}
	return f.parseXrefStream(lx)
}

// parseXrefTable reads a classic "xref" table followed by its trailer.
func (f *file) parseXrefTable(lx *lexer) (Dict, error) {
	for {
		lx.skipSpace()
		if bytes.HasPrefix(f.data[lx.pos:], []byte("trailer")) {
			lx.pos += len("trailer")
			obj, err := lx.readObject()
			if err != nil {
				return nil, fmt.Errorf("bad trailer: %w", err)
			}
			trailer, ok := obj.(Dict)
			if !ok {
				return nil, fmt.Errorf("trailer is not a dictionary")
			}
			return trailer, nil
		}
		start, ok1, err := lx.readNumber()
		if err != nil {
			return nil, fmt.Errorf("bad xref subsection header: %w", err)
		}
		lx.skipSpace()
		count, ok2, err := lx.readNumber()
		if err != nil || !ok1 || !ok2 {
			return nil, fmt.Errorf("bad xref subsection header")
		}
		for i := 0; i < int(count); i++ {
			lx.skipSpace()
			if lx.pos+18 > len(f.data) {
				return nil, fmt.Errorf("truncated xref entry")
			}
			line := f.data[lx.pos : lx.pos+18]
			lx.pos += 18
			offset, err := strconv.ParseInt(string(bytes.TrimSpace(line[0:10])), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad xref offset: %w", err)
			}
			gen, err := strconv.Atoi(string(bytes.TrimSpace(line[11:16])))
			if err != nil {
				return nil, fmt.Errorf("bad xref generation: %w", err)
			}
			num := int(start) + i
			if _, done := f.xref[num]; done {
				continue
			}
			f.xref[num] = xrefEntry{
				offset: offset,
				gen:    gen,
				free:   line[17] == 'f',
			}
		}
	}
}

// parseXrefStream reads a cross-reference stream object (PDF 1.5+).
func (f *file) parseXrefStream(lx *lexer) (Dict, error) {
	// "N G obj" header, then the stream itself.
	if _, err := lx.readObject(); err != nil {
		return nil, err
	}
	if _, err := lx.readObject(); err != nil {
		return nil, err
	}
	if kw, err := lx.readObject(); err != nil || kw != keyword("obj") {
		return nil, fmt.Errorf("xref stream: expected obj header")
	}
	obj, err := lx.readObject()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil, fmt.Errorf("xref stream: object is not a stream")
	}
	stm, err := f.readStreamBody(dict, lx)
	if err != nil {
		return nil, err
	}
	if !stm.Decoded {
		return nil, fmt.Errorf("xref stream uses an unsupported filter")
	}
	widths, ok := dict["W"].(Array)
	if !ok || len(widths) < 3 {
		return nil, fmt.Errorf("xref stream missing /W")
	}
	w := [3]int{int(numberValue(widths[0])), int(numberValue(widths[1])), int(numberValue(widths[2]))}

	size, _ := dictInt(dict, "Size")
	index := []int{0, size}
	if arr, ok := dict["Index"].(Array); ok && len(arr)%2 == 0 {
		index = index[:0]
		for _, v := range arr {
			index = append(index, int(numberValue(v)))
		}
	}

	data := stm.Data
	rowLen := w[0] + w[1] + w[2]
	pos := 0
	readField := func(width int) int64 {
		var v int64
		for i := 0; i < width; i++ {
			v = v<<8 | int64(data[pos])
			pos++
		}
		return v
	}
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return nil, fmt.Errorf("truncated xref stream data")
			}
			typ := int64(1)
			if w[0] > 0 {
				typ = readField(w[0])
			}
			f2 := readField(w[1])
			f3 := readField(w[2])
			num := start + j
			if _, done := f.xref[num]; done {
				continue
			}
			switch typ {
			case 0:
				f.xref[num] = xrefEntry{free: true}
			case 1:
				f.xref[num] = xrefEntry{offset: f2, gen: int(f3)}
			case 2:
				f.xref[num] = xrefEntry{inStream: true, streamNum: int(f2), streamIdx: int(f3)}
			}
		}
	}
	return dict, nil
}
