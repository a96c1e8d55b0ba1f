// Package pdftest builds tiny but structurally valid PDF files for tests:
// one page of Helvetica text, optionally an image placement and an info
// dictionary. Streams are left uncompressed so fixtures stay inspectable.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
)

// Spec describes the fixture document to build.
type Spec struct {
	// Lines are drawn top to bottom from (72, 720). A "|" inside a line
	// splits it into separate consecutive show operations, for exercising
	// matches that span operator boundaries.
	Lines []string
	Image bool // place a 1x1 RGB image at (72, 600), 100x50 points

	// PredictorImage places a 2x2 RGB image instead, Flate-compressed with
	// a PNG row predictor and /Colors 3 in its DecodeParms.
	PredictorImage bool

	// ExtraContent is appended verbatim to the content stream, after the
	// text and image operations.
	ExtraContent string

	// Optional info dictionary fields.
	Title  string
	Author string
}

// Build renders the fixture to PDF bytes.
func Build(s Spec) []byte {
	var content bytes.Buffer
	content.WriteString("BT /F1 12 Tf 72 720 Td\n")
	for i, line := range s.Lines {
		if i > 0 {
			content.WriteString("0 -16 Td\n")
		}
		for _, seg := range strings.Split(line, "|") {
			fmt.Fprintf(&content, "(%s) Tj\n", escapeText(seg))
		}
	}
	content.WriteString("ET\n")
	hasImage := s.Image || s.PredictorImage
	if hasImage {
		content.WriteString("q 100 0 0 50 72 600 cm /Im0 Do Q\n")
	}
	if s.ExtraContent != "" {
		content.WriteString(s.ExtraContent)
		content.WriteByte('\n')
	}

	resources := "<< /Font << /F1 5 0 R >> >>"
	if hasImage {
		resources = "<< /Font << /F1 5 0 R >> /XObject << /Im0 6 0 R >> >>"
	}

	objects := [][]byte{
		[]byte("<< /Type /Catalog /Pages 2 0 R >>"),
		[]byte("<< /Type /Pages /Kids [3 0 R] /Count 1 >>"),
		[]byte(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources %s /Contents 4 0 R >>", resources)),
		streamObject(nil, content.Bytes()),
		[]byte("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"),
	}
	if s.Image {
		imgDict := []byte("/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8")
		objects = append(objects, streamObject(imgDict, []byte{0x10, 0x20, 0x30}))
	} else if s.PredictorImage {
		objects = append(objects, predictorImageObject())
	}
	trailerExtra := ""
	if s.Title != "" || s.Author != "" {
		info := fmt.Sprintf("<< /Title (%s) /Author (%s) /Creator (pdftest) /Producer (pdftest) >>",
			escapeText(s.Title), escapeText(s.Author))
		objects = append(objects, []byte(info))
		trailerExtra = fmt.Sprintf(" /Info %d 0 R", len(objects))
	}
	return assemble(objects, trailerExtra)
}

func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// predictorImageObject builds a 2x2 DeviceRGB image stream the way many
// producers write them: zlib on top of per-row PNG filtering, declared via
// /DecodeParms with /Colors 3 so each row is 1 + 2x3 bytes.
func predictorImageObject() []byte {
	rows := []byte{
		2, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, // Up filter, zero prior row
		1, 0x11, 0x21, 0x31, 0x05, 0x05, 0x05, // Sub filter, bpp 3
	}
	var zb bytes.Buffer
	zw := zlib.NewWriter(&zb)
	zw.Write(rows)
	zw.Close()
	dict := []byte("/Type /XObject /Subtype /Image /Width 2 /Height 2" +
		" /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode" +
		" /DecodeParms << /Predictor 15 /Colors 3 /Columns 2 /BitsPerComponent 8 >>")
	return streamObject(dict, zb.Bytes())
}

func streamObject(extraDict, data []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< /Length %d", len(data))
	if len(extraDict) > 0 {
		b.WriteByte(' ')
		b.Write(extraDict)
	}
	b.WriteString(" >>\nstream\n")
	b.Write(data)
	b.WriteString("\nendstream")
	return b.Bytes()
}

// assemble numbers the objects from 1, writes them with a correct
// cross-reference table, and returns the whole file.
func assemble(objects [][]byte, trailerExtra string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n", i+1)
		b.Write(body)
		b.WriteString("\nendobj\n")
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, trailerExtra, xref)
	return b.Bytes()
}
