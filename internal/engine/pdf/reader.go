package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"

	"github.com/MalithGihan/redact-service/pkg/types"
)

// file is one parsed PDF held fully in memory.
type file struct {
	data    []byte
	xref    map[int]xrefEntry
	trailer Dict
	cache   map[int]Object
	pages   []*pageNode
}

// pageNode is a leaf of the page tree with its inherited attributes resolved.
type pageNode struct {
	ref       Ref
	dict      Dict
	resources Dict
	mediaBox  types.Region
}

func openFile(path string) (*file, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*file, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("missing %%PDF header")
	}
	f := &file{
		data:    data,
		trailer: Dict{},
		cache:   map[int]Object{},
	}
	if err := f.parseXref(); err != nil {
		return nil, err
	}
	if _, ok := f.trailer["Encrypt"]; ok {
		return nil, fmt.Errorf("encrypted documents are not supported")
	}
	if err := f.loadPages(); err != nil {
		return nil, err
	}
	return f, nil
}

// object resolves an object number via the cross-reference table. Results
// are cached so in-place mutation (redaction, metadata scrub) is visible to
// every later lookup, including the writer's reachability walk.
func (f *file) object(num int) (Object, error) {
	if obj, ok := f.cache[num]; ok {
		return obj, nil
	}
	entry, ok := f.xref[num]
	if !ok || entry.free {
		return Null{}, nil
	}
	var obj Object
	var err error
	if entry.inStream {
		obj, err = f.objectFromStream(entry.streamNum, entry.streamIdx)
	} else {
		obj, err = f.objectAt(entry.offset)
	}
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", num, err)
	}
	f.cache[num] = obj
	return obj, nil
}

func (f *file) objectAt(offset int64) (Object, error) {
	if offset < 0 || offset >= int64(len(f.data)) {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}
	lx := newLexer(f.data)
	lx.pos = int(offset)
	// "N G obj" header.
	if _, err := lx.readObject(); err != nil {
		return nil, err
	}
	if _, err := lx.readObject(); err != nil {
		return nil, err
	}
	if kw, err := lx.readObject(); err != nil || kw != keyword("obj") {
		return nil, fmt.Errorf("malformed object header at offset %d", offset)
	}
	obj, err := lx.readObject()
	if err != nil {
		return nil, err
	}
	if dict, ok := obj.(Dict); ok {
		lx.skipSpace()
		if bytes.HasPrefix(f.data[lx.pos:], []byte("stream")) {
			return f.readStreamBody(dict, lx)
		}
	}
	return obj, nil
}

// readStreamBody reads stream data following dict. The lexer must sit just
// before the "stream" keyword. Single-Flate streams are inflated so later
// stages see plain bytes; anything else passes through untouched.
func (f *file) readStreamBody(dict Dict, lx *lexer) (*Stream, error) {
	lx.skipSpace()
	if !bytes.HasPrefix(f.data[lx.pos:], []byte("stream")) {
		return nil, fmt.Errorf("expected stream keyword")
	}
	lx.pos += len("stream")
	// Exactly one EOL follows the keyword; skipping arbitrary whitespace
	// would eat leading binary bytes.
	if lx.pos < len(f.data) && f.data[lx.pos] == '\r' {
		lx.pos++
	}
	if lx.pos < len(f.data) && f.data[lx.pos] == '\n' {
		lx.pos++
	}
	length, err := f.streamLength(dict)
	if err != nil {
		return nil, err
	}
	if lx.pos+length > len(f.data) {
		return nil, fmt.Errorf("stream extends past end of file")
	}
	raw := make([]byte, length)
	copy(raw, f.data[lx.pos:lx.pos+length])

	filters := filterNames(dict["Filter"])
	if len(filters) == 1 && filters[0] == "FlateDecode" {
		decoded, err := inflate(raw)
		if err != nil {
			return nil, fmt.Errorf("flate stream: %w", err)
		}
		if parms, ok := f.resolved(dict["DecodeParms"]).(Dict); ok {
			if pred, _ := dictInt(parms, "Predictor"); pred >= 10 {
				cols, ok := dictInt(parms, "Columns")
				if !ok {
					cols = 1
				}
				colors, ok := dictInt(parms, "Colors")
				if !ok {
					colors = 1
				}
				bpc, ok := dictInt(parms, "BitsPerComponent")
				if !ok {
					bpc = 8
				}
				rowBytes := (cols*colors*bpc + 7) / 8
				bpp := (colors*bpc + 7) / 8
				if bpp < 1 {
					bpp = 1
				}
				decoded, err = undoPNGPredictor(decoded, rowBytes, bpp)
				if err != nil {
					return nil, err
				}
			}
		}
		return &Stream{Dict: dict, Data: decoded, Decoded: true}, nil
	}
	return &Stream{Dict: dict, Data: raw, Decoded: len(filters) == 0}, nil
}

func (f *file) streamLength(dict Dict) (int, error) {
	switch v := dict["Length"].(type) {
	case Number:
		return int(v), nil
	case Ref:
		obj, err := f.object(v.Num)
		if err != nil {
			return 0, err
		}
		if n, ok := obj.(Number); ok {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("stream length missing or invalid")
}

func filterNames(obj Object) []Name {
	switch v := obj.(type) {
	case Name:
		return []Name{v}
	case Array:
		var out []Name
		for _, item := range v {
			if n, ok := item.(Name); ok {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// undoPNGPredictor reverses the PNG row predictors (predictor >= 10 means
// per-row PNG filtering). rowBytes is Columns x Colors x BitsPerComponent
// rounded up to bytes; bpp is the sample size the Sub, Average and Paeth
// filters reference as "left".
func undoPNGPredictor(data []byte, rowBytes, bpp int) ([]byte, error) {
	if rowBytes <= 0 {
		return nil, fmt.Errorf("predictor row length must be positive")
	}
	rowLen := rowBytes + 1
	if len(data)%rowLen != 0 {
		return nil, fmt.Errorf("predictor data is not a whole number of rows")
	}
	out := make([]byte, 0, len(data)/rowLen*rowBytes)
	prev := make([]byte, rowBytes)
	row := make([]byte, rowBytes)
	for off := 0; off < len(data); off += rowLen {
		ft := data[off]
		copy(row, data[off+1:off+rowLen])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowBytes; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowBytes; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowBytes; i++ {
				left := 0
				if i >= bpp {
					left = int(row[i-bpp])
				}
				row[i] += byte((left + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowBytes; i++ {
				left, up, upLeft := 0, int(prev[i]), 0
				if i >= bpp {
					left = int(row[i-bpp])
					upLeft = int(prev[i-bpp])
				}
				row[i] += byte(paeth(left, up, upLeft))
			}
		default:
			return nil, fmt.Errorf("unsupported predictor row filter %d", ft)
		}
		out = append(out, row...)
		copy(prev, row)
	}
	return out, nil
}

func paeth(a, b, c int) int {
	p := a + b - c
	pa, pb, pc := abs(p-a), abs(p-b), abs(p-c)
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// objectFromStream extracts entry idx from an object stream.
func (f *file) objectFromStream(streamNum, idx int) (Object, error) {
	container, err := f.object(streamNum)
	if err != nil {
		return nil, err
	}
	stm, ok := container.(*Stream)
	if !ok || !stm.Decoded {
		return nil, fmt.Errorf("object stream %d unavailable", streamNum)
	}
	n, _ := dictInt(stm.Dict, "N")
	first, _ := dictInt(stm.Dict, "First")
	if idx < 0 || idx >= n {
		return nil, fmt.Errorf("object stream index %d out of range", idx)
	}
	lx := newLexer(stm.Data)
	offset := 0
	for i := 0; i < n; i++ {
		lx.skipSpace()
		if _, _, err := lx.readNumber(); err != nil {
			return nil, err
		}
		lx.skipSpace()
		off, _, err := lx.readNumber()
		if err != nil {
			return nil, err
		}
		if i == idx {
			offset = int(off)
		}
	}
	body := newLexer(stm.Data)
	body.pos = first + offset
	return body.readObject()
}

// resolved follows indirect references until it reaches a direct object.
func (f *file) resolved(obj Object) Object {
	for i := 0; i < 16; i++ {
		ref, ok := obj.(Ref)
		if !ok {
			return obj
		}
		next, err := f.object(ref.Num)
		if err != nil {
			return Null{}
		}
		obj = next
	}
	return Null{}
}

func (f *file) resolvedDict(obj Object) (Dict, bool) {
	d, ok := f.resolved(obj).(Dict)
	return d, ok
}

func (f *file) catalog() (Dict, error) {
	cat, ok := f.resolvedDict(f.trailer["Root"])
	if !ok {
		return nil, fmt.Errorf("document catalog is not a dictionary")
	}
	return cat, nil
}

// loadPages flattens the page tree in document order, resolving inherited
// /Resources and /MediaBox down to each leaf.
func (f *file) loadPages() error {
	cat, err := f.catalog()
	if err != nil {
		return err
	}
	rootRef, _ := cat["Pages"].(Ref)
	letterBox := types.Region{X1: 612, Y1: 792}
	visited := map[int]bool{}

	var walk func(ref Ref, inhRes Dict, inhBox types.Region) error
	walk = func(ref Ref, inhRes Dict, inhBox types.Region) error {
		if visited[ref.Num] {
			return fmt.Errorf("page tree contains a cycle at object %d", ref.Num)
		}
		visited[ref.Num] = true
		node, ok := f.resolvedDict(ref)
		if !ok {
			return fmt.Errorf("page tree node %d is not a dictionary", ref.Num)
		}
		if res, ok := f.resolvedDict(node["Resources"]); ok {
			inhRes = res
		}
		if box, ok := f.rectangle(node["MediaBox"]); ok {
			inhBox = box
		}
		if typ, _ := dictName(node, "Type"); typ == "Page" {
			f.pages = append(f.pages, &pageNode{
				ref:       ref,
				dict:      node,
				resources: inhRes,
				mediaBox:  inhBox,
			})
			return nil
		}
		kids, ok := f.resolved(node["Kids"]).(Array)
		if !ok {
			return fmt.Errorf("page tree node %d has no kids", ref.Num)
		}
		for _, kid := range kids {
			kidRef, ok := kid.(Ref)
			if !ok {
				return fmt.Errorf("page tree kid is not a reference")
			}
			if err := walk(kidRef, inhRes, inhBox); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rootRef, nil, letterBox); err != nil {
		return err
	}
	if len(f.pages) == 0 {
		return fmt.Errorf("document has no pages")
	}
	return nil
}

func (f *file) rectangle(obj Object) (types.Region, bool) {
	arr, ok := f.resolved(obj).(Array)
	if !ok || len(arr) != 4 {
		return types.Region{}, false
	}
	x0, y0 := numberValue(f.resolved(arr[0])), numberValue(f.resolved(arr[1]))
	x1, y1 := numberValue(f.resolved(arr[2])), numberValue(f.resolved(arr[3]))
	return types.Region{X0: min(x0, x1), Y0: min(y0, y1), X1: max(x0, x1), Y1: max(y0, y1)}, true
}

// contentStreams returns the concatenated, decoded content of a page.
func (f *file) contentStreams(page *pageNode) ([]byte, error) {
	var out []byte
	appendStream := func(obj Object) error {
		stm, ok := f.resolved(obj).(*Stream)
		if !ok {
			return fmt.Errorf("page content is not a stream")
		}
		if !stm.Decoded {
			return fmt.Errorf("page content stream uses an unsupported filter")
		}
		out = append(out, stm.Data...)
		out = append(out, '\n')
		return nil
	}
	switch v := f.resolved(page.dict["Contents"]).(type) {
	case *Stream:
		if err := appendStream(v); err != nil {
			return nil, err
		}
	case Array:
		for _, item := range v {
			if err := appendStream(item); err != nil {
				return nil, err
			}
		}
	case nil, Null:
		// Empty page.
	default:
		return nil, fmt.Errorf("page /Contents has unexpected type %T", v)
	}
	return out, nil
}
