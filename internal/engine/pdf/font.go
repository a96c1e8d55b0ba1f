package pdf

// font carries just enough metrics to position and decode show strings:
// per-code advance widths (thousandths of text space) and a ToUnicode map.
type font struct {
	baseFont     string
	twoByte      bool // Type0 fonts with identity-style encodings
	widths       map[int]float64
	defaultWidth float64
	toUnicode    map[int]string
}

// heuristicWidth covers codes with no metrics; half an em matches the
// fallback the text extractor uses for unknown glyphs.
const heuristicWidth = 500

// glyph is one decoded code from a show string.
type glyph struct {
	byteStart int    // offset of the code within the string's raw bytes
	byteLen   int    // 1 or 2
	text      string // unicode expansion, may be empty or multi-rune
	width     float64
}

func loadFont(f *file, dict Dict) *font {
	ft := &font{
		widths:       map[int]float64{},
		defaultWidth: heuristicWidth,
		toUnicode:    map[int]string{},
	}
	if bf, ok := dictName(dict, "BaseFont"); ok {
		ft.baseFont = string(bf)
	}
	if sub, _ := dictName(dict, "Subtype"); sub == "Type0" {
		ft.twoByte = true
		if desc, ok := f.resolved(dict["DescendantFonts"]).(Array); ok && len(desc) > 0 {
			if cid, ok := f.resolvedDict(desc[0]); ok {
				ft.loadCIDWidths(f, cid)
			}
		}
	} else {
		ft.loadSimpleWidths(f, dict)
	}
	if stm, ok := f.resolved(dict["ToUnicode"]).(*Stream); ok && stm.Decoded {
		parseToUnicode(stm.Data, ft.toUnicode)
	}
	return ft
}

func (ft *font) loadSimpleWidths(f *file, dict Dict) {
	first, ok := dictInt(dict, "FirstChar")
	if !ok {
		return
	}
	widths, ok := f.resolved(dict["Widths"]).(Array)
	if !ok {
		return
	}
	for i, w := range widths {
		ft.widths[first+i] = numberValue(f.resolved(w))
	}
}

// loadCIDWidths parses the /W array of a CIDFont: entries are either
// "c [w1 w2 ...]" or "cFirst cLast w".
func (ft *font) loadCIDWidths(f *file, cid Dict) {
	if dw, ok := dictNumber(cid, "DW"); ok {
		ft.defaultWidth = dw
	} else {
		ft.defaultWidth = 1000
	}
	w, ok := f.resolved(cid["W"]).(Array)
	if !ok {
		return
	}
	for i := 0; i < len(w); {
		first := int(numberValue(f.resolved(w[i])))
		if i+1 >= len(w) {
			return
		}
		switch next := f.resolved(w[i+1]).(type) {
		case Array:
			for j, item := range next {
				ft.widths[first+j] = numberValue(f.resolved(item))
			}
			i += 2
		case Number:
			if i+2 >= len(w) {
				return
			}
			last := int(next)
			width := numberValue(f.resolved(w[i+2]))
			for c := first; c <= last && c-first < 65536; c++ {
				ft.widths[c] = width
			}
			i += 3
		default:
			return
		}
	}
}

// decode splits a show string into glyphs with text and advance widths.
func (ft *font) decode(raw []byte) []glyph {
	if ft == nil {
		ft = &font{defaultWidth: heuristicWidth}
	}
	step := 1
	if ft.twoByte {
		step = 2
	}
	out := make([]glyph, 0, len(raw)/step)
	for i := 0; i < len(raw); i += step {
		code := int(raw[i])
		n := 1
		if ft.twoByte && i+1 < len(raw) {
			code = code<<8 | int(raw[i+1])
			n = 2
		}
		g := glyph{byteStart: i, byteLen: n, width: ft.widthOf(code)}
		if txt, ok := ft.toUnicode[code]; ok {
			g.text = txt
		} else if !ft.twoByte && code >= 32 && code < 127 {
			// No ToUnicode map: assume a latin text encoding, which holds
			// for the standard fonts this engine needs to search.
			g.text = string(rune(code))
		}
		out = append(out, g)
	}
	return out
}

func (ft *font) widthOf(code int) float64 {
	if w, ok := ft.widths[code]; ok {
		return w
	}
	return ft.defaultWidth
}

// parseToUnicode reads bfchar/bfrange sections out of a ToUnicode CMap.
func parseToUnicode(data []byte, into map[int]string) {
	lx := newLexer(data)
	for !lx.atEOF() {
		obj, err := lx.readObject()
		if err != nil {
			return
		}
		kw, ok := obj.(keyword)
		if !ok {
			continue
		}
		switch kw {
		case "beginbfchar":
			for {
				src, err := lx.readObject()
				if err != nil || src == keyword("endbfchar") {
					break
				}
				dst, err := lx.readObject()
				if err != nil {
					return
				}
				srcB, ok1 := stringBytes(src)
				dstB, ok2 := stringBytes(dst)
				if ok1 && ok2 {
					into[codeOf(srcB)] = utf16BEString(dstB)
				}
			}
		case "beginbfrange":
			for {
				lo, err := lx.readObject()
				if err != nil || lo == keyword("endbfrange") {
					break
				}
				hi, err := lx.readObject()
				if err != nil {
					return
				}
				dst, err := lx.readObject()
				if err != nil {
					return
				}
				loB, ok1 := stringBytes(lo)
				hiB, ok2 := stringBytes(hi)
				if !ok1 || !ok2 {
					continue
				}
				loC, hiC := codeOf(loB), codeOf(hiB)
				switch d := dst.(type) {
				case Array:
					for i, item := range d {
						if b, ok := stringBytes(item); ok && loC+i <= hiC {
							into[loC+i] = utf16BEString(b)
						}
					}
				default:
					if b, ok := stringBytes(dst); ok {
						base := codeOf(b)
						for c := loC; c <= hiC && c-loC < 65536; c++ {
							into[c] = string(rune(base + c - loC))
						}
					}
				}
			}
		}
	}
}

func codeOf(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

// utf16BEString decodes the UTF-16BE payload of a CMap destination.
func utf16BEString(b []byte) string {
	if len(b) == 1 {
		return string(rune(b[0]))
	}
	var out []rune
	for i := 0; i+1 < len(b); i += 2 {
		u := rune(b[i])<<8 | rune(b[i+1])
		if u >= 0xD800 && u < 0xDC00 && i+3 < len(b) {
			lo := rune(b[i+2])<<8 | rune(b[i+3])
			if lo >= 0xDC00 && lo < 0xE000 {
				out = append(out, 0x10000+(u-0xD800)<<10+(lo-0xDC00))
				i += 2
				continue
			}
		}
		out = append(out, u)
	}
	return string(out)
}

func loadPageFonts(f *file, resources Dict) map[Name]*font {
	fonts := map[Name]*font{}
	if resources == nil {
		return fonts
	}
	dict, ok := f.resolvedDict(resources["Font"])
	if !ok {
		return fonts
	}
	for name, ref := range dict {
		fd, ok := f.resolvedDict(ref)
		if !ok {
			continue
		}
		fonts[name] = loadFont(f, fd)
	}
	return fonts
}
