package pdf

import (
	"math"

	"github.com/MalithGihan/redact-service/pkg/types"
)

// matrix is an affine transform [a b c d e f] (rows of the 3x3 matrix with
// an implicit 0 0 1 column).
type matrix [6]float64

func identity() matrix { return matrix{1, 0, 0, 1, 0, 0} }

func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// bboxOf transforms the rectangle corners and returns their device bbox.
func (m matrix) bboxOf(x0, y0, x1, y1 float64) types.Region {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = m.apply(x0, y0)
	xs[1], ys[1] = m.apply(x1, y0)
	xs[2], ys[2] = m.apply(x0, y1)
	xs[3], ys[3] = m.apply(x1, y1)
	r := types.Region{X0: xs[0], Y0: ys[0], X1: xs[0], Y1: ys[0]}
	for i := 1; i < 4; i++ {
		r.X0 = min(r.X0, xs[i])
		r.Y0 = min(r.Y0, ys[i])
		r.X1 = max(r.X1, xs[i])
		r.Y1 = max(r.Y1, ys[i])
	}
	return r
}

// placedGlyph ties one rendered glyph back to the operation and byte range
// that produced it.
type placedGlyph struct {
	opIndex   int
	elem      int // index into a TJ array; 0 for Tj
	byteStart int
	byteLen   int
	text      string
	rect      types.Region
	kern1000  float64 // advance as a TJ adjustment, for width-preserving removal
	baseX     float64 // device-space pen start and end, for word splitting
	endX      float64
	baseY     float64
	size      float64 // device-space font size approximation
}

// placedImage is one raster placement (XObject or inline) on the page.
type placedImage struct {
	opIndex int
	name    Name // empty for inline images
	rect    types.Region
}

// pageLayout is the interpreted form of one page: its operations, every
// positioned glyph, every image placement, and the assembled reading text
// with per-rune provenance back into glyphs.
type pageLayout struct {
	page   *pageNode
	ops    []op
	glyphs []placedGlyph
	images []placedImage
	text   []rune
	prov   []int // glyph index per rune, -1 for synthetic separators
}

type textState struct {
	font *font
	size float64
	tc   float64 // char spacing
	tw   float64 // word spacing
	th   float64 // horizontal scale (1.0 == 100%)
	tl   float64 // leading
	tm   matrix
	tlm  matrix
}

// layoutPage interprets a page's content streams into a pageLayout.
func layoutPage(f *file, page *pageNode) (*pageLayout, error) {
	content, err := f.contentStreams(page)
	if err != nil {
		return nil, err
	}
	ops, err := parseContent(content)
	if err != nil {
		return nil, err
	}
	pl := &pageLayout{page: page, ops: ops}
	fonts := loadPageFonts(f, page.resources)
	xobjects, _ := f.resolvedDict(page.resources["XObject"])

	ctm := identity()
	var ctmStack []matrix
	ts := textState{th: 1, tm: identity(), tlm: identity()}

	for i, o := range ops {
		switch o.name {
		case "q":
			ctmStack = append(ctmStack, ctm)
		case "Q":
			if n := len(ctmStack); n > 0 {
				ctm = ctmStack[n-1]
				ctmStack = ctmStack[:n-1]
			}
		case "cm":
			if len(o.args) == 6 {
				ctm = argsMatrix(o.args).mul(ctm)
			}
		case "BT":
			ts.tm = identity()
			ts.tlm = identity()
		case "Tf":
			if len(o.args) == 2 {
				if name, ok := o.args[0].(Name); ok {
					ts.font = fonts[name]
				}
				ts.size = numberValue(o.args[1])
			}
		case "Tc":
			ts.tc = argNumber(o.args, 0)
		case "Tw":
			ts.tw = argNumber(o.args, 0)
		case "Tz":
			ts.th = argNumber(o.args, 0) / 100
		case "TL":
			ts.tl = argNumber(o.args, 0)
		case "Td":
			ts.translateLine(argNumber(o.args, 0), argNumber(o.args, 1))
		case "TD":
			ts.tl = -argNumber(o.args, 1)
			ts.translateLine(argNumber(o.args, 0), argNumber(o.args, 1))
		case "Tm":
			if len(o.args) == 6 {
				ts.tm = argsMatrix(o.args)
				ts.tlm = ts.tm
			}
		case "T*":
			ts.translateLine(0, -ts.tl)
		case "Tj":
			if len(o.args) == 1 {
				pl.showString(&ts, ctm, i, 0, o.args[0])
			}
		case "TJ":
			if arr, ok := argArray(o.args, 0); ok {
				for elem, item := range arr {
					if n, ok := item.(Number); ok {
						shift := -float64(n) / 1000 * ts.size * ts.th
						ts.tm = matrix{1, 0, 0, 1, shift, 0}.mul(ts.tm)
					} else {
						pl.showString(&ts, ctm, i, elem, item)
					}
				}
			}
		case "Do":
			if name, ok := argName(o.args, 0); ok && xobjects != nil {
				if xd, ok := f.resolved(xobjects[name]).(*Stream); ok {
					if sub, _ := dictName(xd.Dict, "Subtype"); sub == "Image" {
						pl.images = append(pl.images, placedImage{
							opIndex: i,
							name:    name,
							rect:    ctm.bboxOf(0, 0, 1, 1),
						})
					}
				}
			}
		case opInlineImage:
			pl.images = append(pl.images, placedImage{
				opIndex: i,
				rect:    ctm.bboxOf(0, 0, 1, 1),
			})
		}
	}
	pl.assembleText()
	return pl, nil
}

func (ts *textState) translateLine(tx, ty float64) {
	ts.tlm = matrix{1, 0, 0, 1, tx, ty}.mul(ts.tlm)
	ts.tm = ts.tlm
}

// showString emits placed glyphs for one show-string operand and advances
// the text matrix.
func (pl *pageLayout) showString(ts *textState, ctm matrix, opIndex, elem int, operand Object) {
	raw, ok := stringBytes(operand)
	if !ok {
		return
	}
	for _, g := range ts.font.decode(raw) {
		// Advance in unscaled text space.
		adv := g.width/1000*ts.size + ts.tc
		if g.byteLen == 1 && raw[g.byteStart] == ' ' {
			adv += ts.tw
		}
		adv *= ts.th

		trm := ts.tm.mul(ctm)
		x0, y0 := trm.apply(0, 0)
		x1, _ := trm.apply(adv, 0)
		rect := trm.bboxOf(0, -0.25*ts.size, adv, 0.85*ts.size)

		// Removing this glyph later must not shift surviving text, so
		// record its advance as the equivalent TJ adjustment: spacing
		// contributions fold into thousandths of the font size.
		kern := g.width
		if ts.size != 0 && ts.th != 0 {
			kern = g.width + (adv/ts.th-g.width/1000*ts.size)/ts.size*1000
		}
		pl.glyphs = append(pl.glyphs, placedGlyph{
			opIndex:   opIndex,
			elem:      elem,
			byteStart: g.byteStart,
			byteLen:   g.byteLen,
			text:      g.text,
			rect:      rect,
			kern1000:  kern,
			baseX:     x0,
			endX:      x1,
			baseY:     y0,
			size:      ts.size * math.Hypot(trm[2], trm[3]),
		})
		ts.tm = matrix{1, 0, 0, 1, adv, 0}.mul(ts.tm)
	}
}

// assembleText builds the page's reading text from glyph positions,
// inserting spaces for horizontal gaps and newlines for baseline jumps,
// so terms split across show operations and line wraps still match.
func (pl *pageLayout) assembleText() {
	var lastEndX, lastY float64
	started := false
	for gi, g := range pl.glyphs {
		if g.text == "" {
			continue
		}
		if started {
			if math.Abs(g.baseY-lastY) > max(g.size*0.5, 2) {
				pl.text = append(pl.text, '\n')
				pl.prov = append(pl.prov, -1)
			} else if gap := g.baseX - lastEndX; gap > max(g.size*0.15, 0.5) {
				pl.text = append(pl.text, ' ')
				pl.prov = append(pl.prov, -1)
			}
		}
		for _, r := range g.text {
			pl.text = append(pl.text, r)
			pl.prov = append(pl.prov, gi)
		}
		lastEndX = g.endX
		lastY = g.baseY
		started = true
	}
}

func argNumber(args []Object, i int) float64 {
	if i < len(args) {
		return numberValue(args[i])
	}
	return 0
}

func argName(args []Object, i int) (Name, bool) {
	if i < len(args) {
		n, ok := args[i].(Name)
		return n, ok
	}
	return "", false
}

func argArray(args []Object, i int) (Array, bool) {
	if i < len(args) {
		a, ok := args[i].(Array)
		return a, ok
	}
	return nil, false
}

func argsMatrix(args []Object) matrix {
	var m matrix
	for i := 0; i < 6 && i < len(args); i++ {
		m[i] = numberValue(args[i])
	}
	return m
}
