// Package forms reads and writes AcroForm field values on top of pdfcpu.
//
// A Document is a parsed PDF whose supported fields (text, checkbox, radio
// group and dropdown) can be enumerated and mutated. Mutations are applied to
// the pdfcpu object graph and become visible through Bytes.
package forms

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Field flag bits (PDF 32000-1:2008, tables 221, 226, 228 and 230)
const (
	flagReadOnly    = 1 << 0
	flagRequired    = 1 << 1
	flagRadio       = 1 << 15
	flagPushbutton  = 1 << 16
	flagCombo       = 1 << 17
	flagEdit        = 1 << 18
	flagMultiSelect = 1 << 21
)

// maxDepth bounds field and page tree recursion in malformed files
const maxDepth = 32

// Field describes one supported terminal form field
type Field struct {
	Name      string   `json:"name"`
	Kind      Kind     `json:"kind"`
	Value     Value    `json:"value"`
	Options   []string `json:"options,omitempty"`
	ReadOnly  bool     `json:"read_only,omitempty"`
	Required  bool     `json:"required,omitempty"`
	Editable  bool     `json:"editable,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
	Page      int      `json:"page,omitempty"`
}

// Warning is a non-fatal problem found while reading the form
type Warning struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// String formats the warning for logs
func (w Warning) String() string {
	if w.Field == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

// objRef is a dereferenced dictionary together with its object number, or
// zero when the dictionary was a direct object.
type objRef struct {
	dict  types.Dict
	objNr int
}

type node struct {
	field   Field
	dict    types.Dict
	widgets []objRef
	onState string
}

// Document is a parsed PDF with its form fields indexed by fully qualified name
type Document struct {
	ctx      *model.Context
	acroForm types.Dict
	nodes    []*node
	byName   map[string]*node
	warnings []Warning
	written  bool
}

// Parse reads data into a Document. A PDF without an AcroForm yields a
// Document with no fields.
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, errors.New("document is empty")
	}

	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}

	d := &Document{
		ctx:    ctx,
		byName: make(map[string]*node),
	}
	if err := d.collect(); err != nil {
		return nil, err
	}
	return d, nil
}

func readContext(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// PageCount returns the number of pages in the document
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// Fields returns the supported fields in document order
func (d *Document) Fields() []Field {
	fields := make([]Field, 0, len(d.nodes))
	for _, n := range d.nodes {
		f := n.field
		f.Options = append([]string(nil), n.field.Options...)
		fields = append(fields, f)
	}
	return fields
}

// Field returns the field with the given fully qualified name
func (d *Document) Field(name string) (Field, bool) {
	n, ok := d.byName[name]
	if !ok {
		return Field{}, false
	}
	return n.field, true
}

// Values returns the field value map
func (d *Document) Values() map[string]Value {
	values := make(map[string]Value, len(d.nodes))
	for _, n := range d.nodes {
		values[n.field.Name] = n.field.Value
	}
	return values
}

// Warnings returns problems found while reading the form, such as fields of
// unsupported kinds
func (d *Document) Warnings() []Warning {
	return append([]Warning(nil), d.warnings...)
}

// Bytes serializes the document. The pdfcpu write state is consumed, so a
// Document can be written once; parse the result again for further edits.
func (d *Document) Bytes() ([]byte, error) {
	if d.written {
		return nil, errors.New("document already written")
	}
	d.written = true

	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) warn(field, format string, args ...interface{}) {
	d.warnings = append(d.warnings, Warning{Field: field, Message: fmt.Sprintf(format, args...)})
}

// collect walks the AcroForm field tree
func (d *Document) collect() error {
	rootDict, err := d.ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil
	}

	acroFormDict, err := d.ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil
	}
	d.acroForm = acroFormDict

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil
	}

	fieldsArray, err := d.ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	pages := d.widgetPages()
	for i, o := range fieldsArray {
		ref, err := d.deref(o)
		if err != nil {
			d.warn("", "field %d: %v", i, err)
			continue
		}
		if ref.dict == nil {
			continue
		}
		d.walk(ref, "", pages, 0)
	}
	return nil
}

func (d *Document) deref(o types.Object) (objRef, error) {
	dict, err := d.ctx.DereferenceDict(o)
	if err != nil {
		return objRef{}, err
	}
	return objRef{dict: dict, objNr: objectNumber(o)}, nil
}

func objectNumber(o types.Object) int {
	switch r := o.(type) {
	case types.IndirectRef:
		return r.ObjectNumber.Value()
	case *types.IndirectRef:
		return r.ObjectNumber.Value()
	}
	return 0
}

// walk visits a field node. Kids carrying /T are child fields; kids without
// it are the widget annotations of a terminal field.
func (d *Document) walk(ref objRef, parent string, pages map[int]int, depth int) {
	if depth > maxDepth {
		d.warn(parent, "field tree nested too deeply")
		return
	}

	name := parent
	if partial := d.stringEntry(ref.dict, "T"); partial != "" {
		if parent != "" {
			name = parent + "." + partial
		} else {
			name = partial
		}
	}

	var children, widgets []objRef
	if kidsObj, found := ref.dict.Find("Kids"); found {
		kids, err := d.ctx.DereferenceArray(kidsObj)
		if err != nil {
			d.warn(name, "unreadable kids: %v", err)
			return
		}
		for _, k := range kids {
			kid, err := d.deref(k)
			if err != nil || kid.dict == nil {
				continue
			}
			if _, isField := kid.dict.Find("T"); isField {
				children = append(children, kid)
			} else {
				widgets = append(widgets, kid)
			}
		}
	}

	if len(children) > 0 {
		for _, c := range children {
			d.walk(c, name, pages, depth+1)
		}
		return
	}

	if name == "" {
		d.warn("", "unnamed field skipped")
		return
	}
	if len(widgets) == 0 {
		widgets = []objRef{ref}
	}
	d.add(name, ref.dict, widgets, pages)
}

// add classifies a terminal field and records it when its kind is supported
func (d *Document) add(name string, fd types.Dict, widgets []objRef, pages map[int]int) {
	if _, dup := d.byName[name]; dup {
		d.warn(name, "duplicate field name skipped")
		return
	}

	flags := d.inheritedInt(fd, "Ff")
	n := &node{
		dict:    fd,
		widgets: widgets,
		field: Field{
			Name:     name,
			ReadOnly: flags&flagReadOnly != 0,
			Required: flags&flagRequired != 0,
			Page:     pages[widgets[0].objNr],
		},
	}

	switch ft := d.inheritedName(fd, "FT"); ft {
	case "Tx":
		n.field.Kind = KindText
		n.field.Value = TextValue(d.inheritedString(fd, "V"))
		n.field.MaxLength = d.inheritedInt(fd, "MaxLen")
	case "Btn":
		switch {
		case flags&flagPushbutton != 0:
			d.warn(name, "push buttons are not supported")
			return
		case flags&flagRadio != 0:
			n.field.Kind = KindRadioGroup
			n.field.Options = d.onStates(widgets)
			selected := d.inheritedName(fd, "V")
			if selected == "Off" {
				selected = ""
			}
			n.field.Value = RadioValue(selected)
		default:
			n.field.Kind = KindCheckbox
			n.onState = "Yes"
			if states := d.onStates(widgets); len(states) > 0 {
				n.onState = states[0]
			}
			state := d.inheritedName(fd, "V")
			n.field.Value = CheckboxValue(state != "" && state != "Off")
		}
	case "Ch":
		if flags&flagCombo == 0 {
			d.warn(name, "list boxes are not supported")
			return
		}
		if flags&flagMultiSelect != 0 {
			d.warn(name, "multi-select choice fields are not supported")
			return
		}
		n.field.Kind = KindDropdown
		n.field.Options = d.choiceOptions(fd)
		n.field.Editable = flags&flagEdit != 0
		n.field.Value = DropdownValue(d.choiceValue(fd))
	case "Sig":
		d.warn(name, "signature fields are not supported")
		return
	default:
		d.warn(name, "unsupported field type %q", ft)
		return
	}

	d.nodes = append(d.nodes, n)
	d.byName[name] = n
}

// inherited looks key up on the field and then along its /Parent chain
func (d *Document) inherited(fd types.Dict, key string) (types.Object, bool) {
	for i := 0; fd != nil && i <= maxDepth; i++ {
		if o, found := fd.Find(key); found {
			return o, true
		}
		parentObj, found := fd.Find("Parent")
		if !found {
			break
		}
		parent, err := d.ctx.DereferenceDict(parentObj)
		if err != nil {
			break
		}
		fd = parent
	}
	return nil, false
}

func (d *Document) inheritedName(fd types.Dict, key string) string {
	o, found := d.inherited(fd, key)
	if !found {
		return ""
	}
	return d.name(o)
}

func (d *Document) inheritedString(fd types.Dict, key string) string {
	o, found := d.inherited(fd, key)
	if !found {
		return ""
	}
	s, err := d.ctx.DereferenceStringOrHexLiteral(o, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

func (d *Document) inheritedInt(fd types.Dict, key string) int {
	o, found := d.inherited(fd, key)
	if !found {
		return 0
	}
	i, err := d.ctx.DereferenceInteger(o)
	if err != nil || i == nil {
		return 0
	}
	return i.Value()
}

func (d *Document) name(o types.Object) string {
	n, err := d.ctx.DereferenceName(o, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

func (d *Document) stringEntry(dict types.Dict, key string) string {
	o, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := d.ctx.DereferenceStringOrHexLiteral(o, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

// onStates returns the distinct "on" appearance states of the widgets, in
// widget order
func (d *Document) onStates(widgets []objRef) []string {
	var states []string
	seen := make(map[string]bool)
	for _, w := range widgets {
		s := d.onState(w.dict)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		states = append(states, s)
	}
	return states
}

// onState returns the widget's non-Off normal appearance state name
func (d *Document) onState(w types.Dict) string {
	apObj, found := w.Find("AP")
	if !found {
		return ""
	}
	ap, err := d.ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return ""
	}
	nObj, found := ap.Find("N")
	if !found {
		return ""
	}
	normal, err := d.ctx.DereferenceDict(nObj)
	if err != nil || normal == nil {
		return ""
	}

	keys := make([]string, 0, len(normal))
	for k := range normal {
		if k != "Off" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}

// choiceOptions returns the export values of a choice field's /Opt entries
func (d *Document) choiceOptions(fd types.Dict) []string {
	optObj, found := d.inherited(fd, "Opt")
	if !found {
		return nil
	}
	opts, err := d.ctx.DereferenceArray(optObj)
	if err != nil {
		return nil
	}

	var options []string
	for _, opt := range opts {
		if s, err := d.ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			options = append(options, s)
			continue
		}
		if pair, err := d.ctx.DereferenceArray(opt); err == nil && len(pair) >= 1 {
			if s, err := d.ctx.DereferenceStringOrHexLiteral(pair[0], model.V10, nil); err == nil {
				options = append(options, s)
			}
		}
	}
	return options
}

// choiceValue returns the selected option, taking the first entry when /V
// holds an array
func (d *Document) choiceValue(fd types.Dict) string {
	o, found := d.inherited(fd, "V")
	if !found {
		return ""
	}
	if s, err := d.ctx.DereferenceStringOrHexLiteral(o, model.V10, nil); err == nil {
		return s
	}
	if arr, err := d.ctx.DereferenceArray(o); err == nil && len(arr) > 0 {
		if s, err := d.ctx.DereferenceStringOrHexLiteral(arr[0], model.V10, nil); err == nil {
			return s
		}
	}
	return ""
}

// widgetPages maps annotation object numbers to 1-based page numbers
func (d *Document) widgetPages() map[int]int {
	pages := make(map[int]int)
	rootDict, err := d.ctx.Catalog()
	if err != nil {
		return pages
	}
	pagesObj, found := rootDict.Find("Pages")
	if !found {
		return pages
	}
	pageNr := 0
	d.walkPages(pagesObj, &pageNr, pages, 0)
	return pages
}

func (d *Document) walkPages(o types.Object, pageNr *int, pages map[int]int, depth int) {
	if depth > maxDepth {
		return
	}
	pd, err := d.ctx.DereferenceDict(o)
	if err != nil || pd == nil {
		return
	}

	if typeObj, found := pd.Find("Type"); found && d.name(typeObj) == "Pages" {
		kidsObj, found := pd.Find("Kids")
		if !found {
			return
		}
		kids, err := d.ctx.DereferenceArray(kidsObj)
		if err != nil {
			return
		}
		for _, k := range kids {
			d.walkPages(k, pageNr, pages, depth+1)
		}
		return
	}

	*pageNr++
	annotsObj, found := pd.Find("Annots")
	if !found {
		return
	}
	annots, err := d.ctx.DereferenceArray(annotsObj)
	if err != nil {
		return
	}
	for _, a := range annots {
		if nr := objectNumber(a); nr > 0 {
			pages[nr] = *pageNr
		}
	}
}
