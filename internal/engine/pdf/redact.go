package pdf

import (
	"fmt"

	"github.com/MalithGihan/redact-service/pkg/types"
)

// applyRedactions rewrites a page so that every glyph whose box center
// falls inside a region, and every raster image overlapping a region, is
// removed from the content stream, then paints each region solid black.
// All rewriting happens on scratch data; the page dictionary is only
// touched once the whole rebuild has succeeded, so a failure leaves the
// page exactly as it was.
func (f *file) applyRedactions(page *pageNode, pl *pageLayout, regions []types.Region) error {
	if len(regions) == 0 {
		return nil
	}
	hit := make([]types.Region, len(regions))
	for i, r := range regions {
		hit[i] = r.Expand(0.5)
	}
	inRegions := func(x, y float64) bool {
		for _, r := range hit {
			if r.Contains(x, y) {
				return true
			}
		}
		return false
	}

	// Doomed glyphs, grouped by the operation that shows them.
	doomed := map[int]map[int]bool{} // opIndex -> glyph index set
	for gi, g := range pl.glyphs {
		cx := (g.rect.X0 + g.rect.X1) / 2
		cy := (g.rect.Y0 + g.rect.Y1) / 2
		if inRegions(cx, cy) {
			set, ok := doomed[g.opIndex]
			if !ok {
				set = map[int]bool{}
				doomed[g.opIndex] = set
			}
			set[gi] = true
		}
	}

	// Doomed image placements: any overlap means full removal.
	doomedImage := map[int]bool{}
	imageUses := map[Name]int{}
	imageDrops := map[Name]int{}
	for _, img := range pl.images {
		if img.name != "" {
			imageUses[img.name]++
		}
		for _, r := range hit {
			if img.rect.Intersects(r) {
				doomedImage[img.opIndex] = true
				if img.name != "" {
					imageDrops[img.name]++
				}
				break
			}
		}
	}

	// Bracket the original content so the fills below run in page space
	// even if the stream leaves a transform behind. Unmatched q operators
	// inside the stream are counted and closed for the same reason.
	newOps := make([]op, 0, len(pl.ops)+2+5*len(regions))
	newOps = append(newOps, op{name: "q"})
	depth := 0
	for i, o := range pl.ops {
		switch o.name {
		case "q":
			depth++
		case "Q":
			if depth > 0 {
				depth--
			}
		}
		if doomedImage[i] {
			continue
		}
		if set, ok := doomed[i]; ok {
			rebuilt, err := rebuildShowOp(pl, i, o, set)
			if err != nil {
				return err
			}
			newOps = append(newOps, rebuilt)
			continue
		}
		newOps = append(newOps, o)
	}
	for ; depth > 0; depth-- {
		newOps = append(newOps, op{name: "Q"})
	}
	newOps = append(newOps, op{name: "Q"})
	for _, r := range regions {
		newOps = append(newOps, blackBox(r)...)
	}

	resources, err := f.pruneImageResources(page, imageUses, imageDrops)
	if err != nil {
		return err
	}

	// Rebuild succeeded: swap everything in.
	page.dict["Contents"] = &Stream{Dict: Dict{}, Data: encodeContent(newOps), Decoded: true}
	if resources != nil {
		page.dict["Resources"] = resources
		page.resources = resources
	}
	return nil
}

// rebuildShowOp re-emits a Tj/TJ operation with the doomed glyphs' bytes
// deleted. Each removed run is replaced by a kerning adjustment equal to
// its advance, so surviving text keeps its exact position.
func rebuildShowOp(pl *pageLayout, opIndex int, o op, doomed map[int]bool) (op, error) {
	var elems []Object
	switch o.name {
	case "Tj":
		if len(o.args) != 1 {
			return op{}, fmt.Errorf("malformed Tj operation")
		}
		elems = []Object{o.args[0]}
	case "TJ":
		arr, ok := argArray(o.args, 0)
		if !ok {
			return op{}, fmt.Errorf("malformed TJ operation")
		}
		elems = arr
	default:
		return op{}, fmt.Errorf("redaction hit unsupported show operator %q", o.name)
	}

	// Glyphs of this op, grouped per element, in byte order.
	byElem := map[int][]int{}
	for gi, g := range pl.glyphs {
		if g.opIndex == opIndex {
			byElem[g.elem] = append(byElem[g.elem], gi)
		}
	}

	var out Array
	pendingKern := 0.0
	flushKern := func() {
		if pendingKern != 0 {
			out = append(out, Number(-pendingKern))
			pendingKern = 0
		}
	}
	for elemIdx, elem := range elems {
		raw, isString := stringBytes(elem)
		if !isString {
			flushKern()
			out = append(out, elem)
			continue
		}
		var kept []byte
		flushKept := func() {
			if len(kept) > 0 {
				flushKern()
				out = append(out, HexString(kept))
				kept = nil
			}
		}
		for _, gi := range byElem[elemIdx] {
			g := pl.glyphs[gi]
			if doomed[gi] {
				flushKept()
				pendingKern += g.kern1000
				continue
			}
			kept = append(kept, raw[g.byteStart:g.byteStart+g.byteLen]...)
		}
		flushKept()
	}
	flushKern()
	return op{name: "TJ", args: []Object{out}}, nil
}

// blackBox emits a self-contained fill of the region in device space.
func blackBox(r types.Region) []op {
	return []op{
		{name: "q"},
		{name: "g", args: []Object{Number(0)}},
		{name: "re", args: []Object{
			Number(r.X0), Number(r.Y0), Number(r.Width()), Number(r.Height()),
		}},
		{name: "f"},
		{name: "Q"},
	}
}

// pruneImageResources drops XObject entries whose every placement on this
// page was removed. Inherited resource dictionaries are cloned first so
// sibling pages keep seeing the original. Returns nil when nothing changed.
func (f *file) pruneImageResources(page *pageNode, uses, drops map[Name]int) (Dict, error) {
	var gone []Name
	for name, dropped := range drops {
		if dropped >= uses[name] {
			gone = append(gone, name)
		}
	}
	if len(gone) == 0 {
		return nil, nil
	}
	resources := Dict{}
	for k, v := range page.resources {
		resources[k] = v
	}
	xobjects, ok := f.resolvedDict(resources["XObject"])
	if !ok {
		return nil, fmt.Errorf("page has image placements but no XObject resources")
	}
	pruned := Dict{}
	for k, v := range xobjects {
		pruned[k] = v
	}
	for _, name := range gone {
		delete(pruned, name)
	}
	resources["XObject"] = pruned
	return resources, nil
}
