package pdf

import (
	"bytes"
	"fmt"
)

// op is a single content-stream operation: operands followed by an operator.
// Inline images (BI..EI) are carried as opInlineImage with the parameter
// dictionary in args[0] and the sample data in raw.
type op struct {
	name string
	args []Object
	raw  []byte
}

const opInlineImage = "BI"

// parseContent tokenizes a decoded content stream into operations. The
// shorthand show operators ' and " are rewritten into their T*/Tw/Tc/Tj
// equivalents so later stages only deal with Tj and TJ.
func parseContent(data []byte) ([]op, error) {
	lx := newLexer(data)
	var ops []op
	var args []Object
	flush := func(name string) {
		ops = append(ops, op{name: name, args: args})
		args = nil
	}
	for !lx.atEOF() {
		obj, err := lx.readObject()
		if err != nil {
			return nil, fmt.Errorf("content stream: %w", err)
		}
		kw, ok := obj.(keyword)
		if !ok {
			args = append(args, obj)
			continue
		}
		switch string(kw) {
		case "'":
			if len(args) != 1 {
				return nil, fmt.Errorf("content stream: ' takes one operand")
			}
			ops = append(ops, op{name: "T*"})
			flush("Tj")
		case "\"":
			if len(args) != 3 {
				return nil, fmt.Errorf("content stream: \" takes three operands")
			}
			ops = append(ops,
				op{name: "Tw", args: args[:1]},
				op{name: "Tc", args: args[1:2]},
				op{name: "T*"})
			args = args[2:]
			flush("Tj")
		case opInlineImage:
			if len(args) != 0 {
				return nil, fmt.Errorf("content stream: BI preceded by stray operands")
			}
			img, err := readInlineImage(lx)
			if err != nil {
				return nil, err
			}
			ops = append(ops, img)
		default:
			flush(string(kw))
		}
	}
	if len(args) != 0 {
		return nil, fmt.Errorf("content stream: %d trailing operands", len(args))
	}
	return ops, nil
}

// readInlineImage consumes "key value ... ID <bytes> EI" after a BI token.
func readInlineImage(lx *lexer) (op, error) {
	params := Dict{}
	for {
		obj, err := lx.readObject()
		if err != nil {
			return op{}, fmt.Errorf("inline image parameters: %w", err)
		}
		if kw, ok := obj.(keyword); ok {
			if kw != "ID" {
				return op{}, fmt.Errorf("inline image: unexpected token %q", kw)
			}
			break
		}
		key, ok := obj.(Name)
		if !ok {
			return op{}, fmt.Errorf("inline image parameter key is %T, want name", obj)
		}
		val, err := lx.readObject()
		if err != nil {
			return op{}, err
		}
		params[key] = val
	}
	// One whitespace byte separates ID from the sample data.
	if lx.pos < len(lx.data) && isWhitespace(lx.data[lx.pos]) {
		lx.pos++
	}
	end := findInlineImageEnd(lx.data, lx.pos)
	if end < 0 {
		return op{}, fmt.Errorf("inline image: missing EI terminator")
	}
	dataEnd := end
	if dataEnd > lx.pos && isWhitespace(lx.data[dataEnd-1]) {
		dataEnd--
	}
	raw := lx.data[lx.pos:dataEnd]
	lx.pos = end
	// Consume the EI token itself.
	lx.skipSpace()
	lx.pos += 2
	return op{name: opInlineImage, args: []Object{params}, raw: raw}, nil
}

func findInlineImageEnd(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] != 'E' || data[i+1] != 'I' {
			continue
		}
		before := i == 0 || isWhitespace(data[i-1])
		after := i+2 >= len(data) || isWhitespace(data[i+2]) || isDelimiter(data[i+2])
		if before && after {
			return i
		}
	}
	return -1
}

// encodeContent serializes operations back into content-stream bytes.
func encodeContent(ops []op) []byte {
	var b bytes.Buffer
	for _, o := range ops {
		if o.name == opInlineImage {
			b.WriteString("BI")
			if params, ok := o.args[0].(Dict); ok {
				for _, k := range sortedKeys(params) {
					b.WriteByte(' ')
					k.encode(&b)
					b.WriteByte(' ')
					params[k].encode(&b)
				}
			}
			b.WriteString(" ID\n")
			b.Write(o.raw)
			b.WriteString("\nEI\n")
			continue
		}
		for _, a := range o.args {
			a.encode(&b)
			b.WriteByte(' ')
		}
		b.WriteString(o.name)
		b.WriteByte('\n')
	}
	return b.Bytes()
}
