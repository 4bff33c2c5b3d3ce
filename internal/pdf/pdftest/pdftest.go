// Package pdftest builds small PDF documents with AcroForm fields for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Field kinds understood by Build
const (
	Text       = "text"
	Checkbox   = "checkbox"
	Radio      = "radio"
	Dropdown   = "dropdown"
	ListBox    = "listbox"
	PushButton = "pushbutton"
	Signature  = "signature"
)

// Field describes one form field to place in the document
type Field struct {
	Kind     string
	Name     string
	Value    string // text, selected radio option or dropdown option
	Checked  bool
	Options  []string // radio states or dropdown options
	Page     int      // 1-based, defaults to 1
	ReadOnly bool
	Editable bool // editable dropdown
	MaxLen   int
}

// Options configures Build
type Options struct {
	Pages      int
	Fields     []Field
	NoAcroForm bool
	// NoDA leaves out the /DA default appearance on fields and the AcroForm
	NoDA bool
}

// Build returns a PDF with the requested pages and fields. Each page shows
// the text "Page N".
func Build(opts Options) []byte {
	if opts.Pages < 1 {
		opts.Pages = 1
	}

	b := &builder{}
	catalog := b.alloc()
	pagesNr := b.alloc()
	font := b.alloc()
	b.set(font, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	pageNrs := make([]int, opts.Pages)
	contentNrs := make([]int, opts.Pages)
	annots := make([][]int, opts.Pages)
	for i := range pageNrs {
		pageNrs[i] = b.alloc()
		contentNrs[i] = b.alloc()
		b.setStream(contentNrs[i], "", fmt.Sprintf("BT /F1 18 Tf 72 720 Td (Page %d) Tj ET", i+1))
	}

	da := " /DA (/Helv 12 Tf 0 g)"
	formDA := " /DA (/Helv 0 Tf 0 g)"
	if opts.NoDA {
		da, formDA = "", ""
	}

	var fieldNrs []int
	offAP := b.alloc()
	b.setStream(offAP, "/Type /XObject /Subtype /Form /BBox [0 0 14 14] /Resources << >>", "")

	for i, f := range opts.Fields {
		page := f.Page
		if page < 1 || page > opts.Pages {
			page = 1
		}
		pageRef := pageNrs[page-1]
		rect := fmt.Sprintf("[72 %d 272 %d]", 600-i*30, 620-i*30)
		widget := fmt.Sprintf("/Type /Annot /Subtype /Widget /Rect %s /F 4 /P %d 0 R", rect, pageRef)

		flags := 0
		if f.ReadOnly {
			flags |= 1
		}

		switch f.Kind {
		case Radio:
			parent := b.alloc()
			var kids []string
			for _, opt := range f.Options {
				on := b.alloc()
				b.setStream(on, "/Type /XObject /Subtype /Form /BBox [0 0 14 14] /Resources << >>", "0 0 14 14 re f")
				kid := b.alloc()
				as := "Off"
				if opt == f.Value {
					as = opt
				}
				b.set(kid, fmt.Sprintf("<< %s /Parent %d 0 R /AS /%s /AP << /N << /%s %d 0 R /Off %d 0 R >> >> >>",
					widget, parent, as, opt, on, offAP))
				kids = append(kids, fmt.Sprintf("%d 0 R", kid))
				annots[page-1] = append(annots[page-1], kid)
			}
			v := "Off"
			if f.Value != "" {
				v = f.Value
			}
			b.set(parent, fmt.Sprintf("<< /FT /Btn /Ff %d /T (%s) /V /%s /Kids [%s] >>",
				flags|1<<15|1<<14, escape(f.Name), v, strings.Join(kids, " ")))
			fieldNrs = append(fieldNrs, parent)
			continue

		case Checkbox:
			on := b.alloc()
			b.setStream(on, "/Type /XObject /Subtype /Form /BBox [0 0 14 14] /Resources << >>", "0 0 14 14 re f")
			state := "Off"
			if f.Checked {
				state = "Yes"
			}
			nr := b.alloc()
			b.set(nr, fmt.Sprintf("<< /FT /Btn /Ff %d /T (%s) /V /%s /AS /%s /AP << /N << /Yes %d 0 R /Off %d 0 R >> >> %s >>",
				flags, escape(f.Name), state, state, on, offAP, widget))
			fieldNrs = append(fieldNrs, nr)
			annots[page-1] = append(annots[page-1], nr)
			continue
		}

		var entries string
		switch f.Kind {
		case Text:
			entries = fmt.Sprintf("/FT /Tx /Ff %d /V (%s)%s", flags, escape(f.Value), da)
			if f.MaxLen > 0 {
				entries += fmt.Sprintf(" /MaxLen %d", f.MaxLen)
			}
		case Dropdown, ListBox:
			if f.Kind == Dropdown {
				flags |= 1 << 17
				if f.Editable {
					flags |= 1 << 18
				}
			}
			opts := make([]string, len(f.Options))
			for j, o := range f.Options {
				opts[j] = "(" + escape(o) + ")"
			}
			entries = fmt.Sprintf("/FT /Ch /Ff %d /V (%s) /Opt [%s]%s",
				flags, escape(f.Value), strings.Join(opts, " "), da)
		case PushButton:
			entries = fmt.Sprintf("/FT /Btn /Ff %d", flags|1<<16)
		case Signature:
			entries = "/FT /Sig"
		default:
			panic("pdftest: unknown field kind " + f.Kind)
		}

		nr := b.alloc()
		b.set(nr, fmt.Sprintf("<< %s /T (%s) %s >>", entries, escape(f.Name), widget))
		fieldNrs = append(fieldNrs, nr)
		annots[page-1] = append(annots[page-1], nr)
	}

	kids := make([]string, len(pageNrs))
	for i, nr := range pageNrs {
		kids[i] = fmt.Sprintf("%d 0 R", nr)
		var annotRefs string
		if len(annots[i]) > 0 {
			annotRefs = " /Annots [" + refs(annots[i]) + "]"
		}
		b.set(nr, fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R%s >>",
			pagesNr, font, contentNrs[i], annotRefs))
	}
	b.set(pagesNr, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageNrs)))

	if opts.NoAcroForm {
		b.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesNr))
	} else {
		acroForm := b.alloc()
		b.set(acroForm, fmt.Sprintf("<< /Fields [%s]%s /DR << /Font << /Helv %d 0 R >> >> >>",
			refs(fieldNrs), formDA, font))
		b.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R /AcroForm %d 0 R >>", pagesNr, acroForm))
	}

	return b.bytes(catalog)
}

// NameAgree returns a two page form with an empty text field "Name" on page
// one and an unchecked checkbox "Agree" on page two.
func NameAgree() []byte {
	return Build(Options{
		Pages: 2,
		Fields: []Field{
			{Kind: Text, Name: "Name", Page: 1},
			{Kind: Checkbox, Name: "Agree", Page: 2},
		},
	})
}

// AllKinds returns a one page form with one field of every supported kind
// plus a push button and a signature field, which are not supported.
func AllKinds() []byte {
	return Build(Options{
		Pages: 1,
		Fields: []Field{
			{Kind: Text, Name: "Name", Value: "Bob"},
			{Kind: Checkbox, Name: "Agree", Checked: true},
			{Kind: Radio, Name: "Color", Options: []string{"Red", "Green"}, Value: "Green"},
			{Kind: Dropdown, Name: "Country", Options: []string{"US", "CA", "MX"}, Value: "CA"},
			{Kind: PushButton, Name: "Submit"},
			{Kind: Signature, Name: "Sig"},
		},
	})
}

type builder struct {
	objs []string
}

func (b *builder) alloc() int {
	b.objs = append(b.objs, "null")
	return len(b.objs)
}

func (b *builder) set(nr int, body string) {
	b.objs[nr-1] = body
}

func (b *builder) setStream(nr int, dict, data string) {
	b.objs[nr-1] = fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

func (b *builder) bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objs))
	for i, body := range b.objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objs)+1, root, xref)
	return buf.Bytes()
}

func refs(nrs []int) string {
	s := make([]string, len(nrs))
	for i, nr := range nrs {
		s[i] = fmt.Sprintf("%d 0 R", nr)
	}
	return strings.Join(s, " ")
}

var escaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func escape(s string) string {
	return escaper.Replace(s)
}
