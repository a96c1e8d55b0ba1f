package pdf

import (
	"fmt"
	"strconv"
)

// lexer tokenizes PDF syntax from an in-memory byte slice. The same lexer
// serves file bodies, object streams, content streams and CMaps.
type lexer struct {
	data []byte
	pos  int
}

func newLexer(data []byte) *lexer { return &lexer{data: data} }

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isWhitespace(c) && !isDelimiter(c) }

func (l *lexer) atEOF() bool {
	l.skipSpace()
	return l.pos >= len(l.data)
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

// readObject parses the next object. Bare tokens (operators, "obj",
// "endstream", ...) come back as keyword values.
func (l *lexer) readObject() (Object, error) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return nil, fmt.Errorf("unexpected end of input at offset %d", l.pos)
	}
	c := l.data[l.pos]
	switch {
	case c == '/':
		return l.readName(), nil
	case c == '(':
		return l.readLiteralString()
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.readDict()
		}
		return l.readHexString()
	case c == '[':
		return l.readArray()
	case c == ']', c == '>', c == ')', c == '{', c == '}':
		return nil, fmt.Errorf("unexpected delimiter %q at offset %d", c, l.pos)
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.readNumberOrRef()
	default:
		return l.readKeyword(), nil
	}
}

func (l *lexer) readName() Name {
	l.pos++ // slash
	var out []byte
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		c := l.data[l.pos]
		if c == '#' && l.pos+2 < len(l.data) {
			if v, err := strconv.ParseUint(string(l.data[l.pos+1:l.pos+3]), 16, 8); err == nil {
				out = append(out, byte(v))
				l.pos += 3
				continue
			}
		}
		out = append(out, c)
		l.pos++
	}
	return Name(out)
}

func (l *lexer) readLiteralString() (String, error) {
	l.pos++ // open paren
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return String(out), nil
			}
			out = append(out, c)
		case '\\':
			if l.pos >= len(l.data) {
				return nil, fmt.Errorf("unterminated escape in string")
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\n':
				// line continuation
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for n := 0; n < 2 && l.pos < len(l.data); n++ {
					d := l.data[l.pos]
					if d < '0' || d > '7' {
						break
					}
					v = v*8 + int(d-'0')
					l.pos++
				}
				out = append(out, byte(v))
			default:
				out = append(out, e)
			}
		default:
			out = append(out, c)
		}
	}
	return nil, fmt.Errorf("unterminated literal string")
}

func (l *lexer) readHexString() (HexString, error) {
	l.pos++ // '<'
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := 0; i < len(out); i++ {
				v, err := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
				if err != nil {
					return nil, fmt.Errorf("bad hex string digit: %w", err)
				}
				out[i] = byte(v)
			}
			return HexString(out), nil
		}
		if isWhitespace(c) {
			continue
		}
		digits = append(digits, c)
	}
	return nil, fmt.Errorf("unterminated hex string")
}

func (l *lexer) readArray() (Array, error) {
	l.pos++ // '['
	var out Array
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated array")
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return out, nil
		}
		obj, err := l.readObject()
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
}

func (l *lexer) readDict() (Dict, error) {
	l.pos += 2 // '<<'
	out := Dict{}
	for {
		l.skipSpace()
		if l.pos+1 < len(l.data) && l.data[l.pos] == '>' && l.data[l.pos+1] == '>' {
			l.pos += 2
			return out, nil
		}
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated dictionary")
		}
		if l.data[l.pos] != '/' {
			return nil, fmt.Errorf("dictionary key is not a name at offset %d", l.pos)
		}
		key := l.readName()
		val, err := l.readObject()
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
}

// readNumberOrRef reads a number, upgrading "N G R" sequences to a Ref.
func (l *lexer) readNumberOrRef() (Object, error) {
	first, isInt, err := l.readNumber()
	if err != nil {
		return nil, err
	}
	if !isInt || first < 0 {
		return Number(first), nil
	}
	save := l.pos
	l.skipSpace()
	gen, genInt, err := l.readNumber()
	if err == nil && genInt && gen >= 0 {
		l.skipSpace()
		if l.pos < len(l.data) && l.data[l.pos] == 'R' &&
			(l.pos+1 >= len(l.data) || !isRegular(l.data[l.pos+1])) {
			l.pos++
			return Ref{Num: int(first), Gen: int(gen)}, nil
		}
	}
	l.pos = save
	return Number(first), nil
}

func (l *lexer) readNumber() (float64, bool, error) {
	start := l.pos
	if l.pos < len(l.data) && (l.data[l.pos] == '+' || l.data[l.pos] == '-') {
		l.pos++
	}
	isInt := true
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c >= '0' && c <= '9' {
			l.pos++
		} else if c == '.' {
			isInt = false
			l.pos++
		} else {
			break
		}
	}
	if l.pos == start {
		return 0, false, fmt.Errorf("expected number at offset %d", start)
	}
	v, err := strconv.ParseFloat(string(l.data[start:l.pos]), 64)
	if err != nil {
		return 0, false, fmt.Errorf("bad number %q: %w", l.data[start:l.pos], err)
	}
	return v, isInt, nil
}

func (l *lexer) readKeyword() Object {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		// Lone delimiter-ish byte; consume it so the caller makes progress.
		l.pos++
	}
	switch kw := string(l.data[start:l.pos]); kw {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null":
		return Null{}
	default:
		return keyword(kw)
	}
}
