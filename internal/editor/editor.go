// Package editor holds the state of one PDF form editing session: the
// document bytes, the field value map mirroring them and the page display
// state.
//
// Every field edit re-parses the document, applies the one mutation and
// serializes it again, so an edit costs O(document size). Loads and edits go
// through a single writer lock so each edit starts from the latest bytes.
package editor

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/a3tai/pdf-form-editor/internal/pdf/forms"
	"github.com/a3tai/pdf-form-editor/internal/pdf/render"
)

// ExportFileName is the file name offered for downloads
const ExportFileName = "filled-form.pdf"

// maxWarnings caps the warnings kept for display
const maxWarnings = 50

// Direction is a relative page move
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

// Options configures an Editor
type Options struct {
	MaxFileSize int64
	Logger      *log.Logger
	Renderer    *render.Renderer
}

// State is a snapshot of the editor
type State struct {
	Loaded      bool                   `json:"loaded"`
	CurrentPage int                    `json:"current_page"`
	TotalPages  int                    `json:"total_pages"`
	Size        int                    `json:"size"`
	Values      map[string]forms.Value `json:"values"`
	Fields      []forms.Field          `json:"fields"`
	Warnings    []forms.Warning        `json:"warnings,omitempty"`
	LastError   *Error                 `json:"last_error,omitempty"`
}

// Export is a downloadable copy of the document
type Export struct {
	FileName string
	Data     []byte
}

// Editor is the embedded form editor
type Editor struct {
	maxFileSize int64
	logger      *log.Logger
	renderer    *render.Renderer

	// writeMu serializes LoadDocument and SetFieldValue
	writeMu sync.Mutex

	mu          sync.RWMutex
	buffer      []byte
	fields      []forms.Field
	index       map[string]int
	currentPage int
	totalPages  int
	warnings    []forms.Warning
	lastErr     *Error
	closed      bool
}

// New creates an editor with no document loaded
func New(opts Options) *Editor {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.NewRenderer()
	}
	return &Editor{
		maxFileSize: opts.MaxFileSize,
		logger:      opts.Logger,
		renderer:    opts.Renderer,
		index:       make(map[string]int),
	}
}

// LoadDocument replaces the current document with data. On failure the
// previous document, field values and page state are kept.
func (e *Editor) LoadDocument(ctx context.Context, data []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.checkOpen(); err != nil {
		return e.fail(LoadFailure, "load", "", err)
	}
	if err := ctx.Err(); err != nil {
		return e.fail(LoadFailure, "load", "", err)
	}
	if err := e.checkBytes(data); err != nil {
		return e.fail(LoadFailure, "load", "", err)
	}

	doc, err := forms.Parse(data)
	if err != nil {
		return e.fail(LoadFailure, "load", "", err)
	}
	totalPages := e.pageCount(data, doc)
	if totalPages < 1 {
		return e.fail(LoadFailure, "load", "", fmt.Errorf("document has no pages"))
	}
	if err := ctx.Err(); err != nil {
		return e.fail(LoadFailure, "load", "", err)
	}

	fields := doc.Fields()
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f.Name] = i
	}

	e.mu.Lock()
	e.buffer = bytes.Clone(data)
	e.fields = fields
	e.index = index
	e.currentPage = 1
	e.totalPages = totalPages
	e.warnings = doc.Warnings()
	e.lastErr = nil
	e.mu.Unlock()

	for _, w := range doc.Warnings() {
		e.logger.Printf("load: skipped field %s", w)
	}
	e.logger.Printf("load: %d bytes, %d pages, %d fields", len(data), totalPages, len(fields))
	return nil
}

// pageCount asks the renderer for the page count and falls back to the form
// model when the renderer cannot read the file
func (e *Editor) pageCount(data []byte, doc *forms.Document) int {
	n, err := e.renderer.PageCount(data)
	if err != nil {
		e.logger.Printf("load: renderer page count failed, using form model: %v", err)
		return doc.PageCount()
	}
	if n != doc.PageCount() {
		e.logger.Printf("load: renderer reports %d pages, form model %d", n, doc.PageCount())
	}
	return n
}

// SetFieldValue writes v to the named field. The field must exist and v must
// be of the field's kind. The document bytes and the value map are swapped
// together once the re-serialized document is ready.
func (e *Editor) SetFieldValue(ctx context.Context, name string, v forms.Value) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.RLock()
	buffer := e.buffer
	idx, found := e.index[name]
	closed := e.closed
	var kind forms.Kind
	if found {
		kind = e.fields[idx].Kind
	}
	e.mu.RUnlock()

	switch {
	case closed:
		return e.fail(UpdateFailure, "set", name, ErrClosed)
	case buffer == nil:
		return e.fail(UpdateFailure, "set", name, ErrNoDocument)
	case !found:
		return e.fail(UpdateFailure, "set", name, fmt.Errorf("%w: %q", forms.ErrFieldNotFound, name))
	case v.Kind() != kind:
		return e.fail(UpdateFailure, "set", name,
			fmt.Errorf("%w: %s field given %s value", forms.ErrKindMismatch, kind, v.Kind()))
	}

	doc, err := forms.Parse(buffer)
	if err != nil {
		return e.fail(UpdateFailure, "set", name, err)
	}
	if err := doc.Set(name, v); err != nil {
		return e.fail(UpdateFailure, "set", name, err)
	}
	out, err := doc.Bytes()
	if err != nil {
		return e.fail(UpdateFailure, "set", name, err)
	}
	if err := ctx.Err(); err != nil {
		return e.fail(UpdateFailure, "set", name, err)
	}

	e.mu.Lock()
	e.buffer = out
	e.fields[idx].Value = v
	e.mu.Unlock()

	e.logger.Printf("set: %s = %q (%d bytes)", name, v.String(), len(out))
	return nil
}

// SetFieldValueString converts raw to the kind of the named field and sets it
func (e *Editor) SetFieldValueString(ctx context.Context, name, raw string) error {
	f, found := e.Field(name)
	if !found {
		return e.fail(UpdateFailure, "set", name, fmt.Errorf("%w: %q", forms.ErrFieldNotFound, name))
	}
	v, err := forms.ParseValue(f.Kind, raw)
	if err != nil {
		return e.fail(UpdateFailure, "set", name, err)
	}
	return e.SetFieldValue(ctx, name, v)
}

// SetFieldValueInterface converts a decoded JSON value to the kind of the
// named field and sets it
func (e *Editor) SetFieldValueInterface(ctx context.Context, name string, raw interface{}) error {
	f, found := e.Field(name)
	if !found {
		return e.fail(UpdateFailure, "set", name, fmt.Errorf("%w: %q", forms.ErrFieldNotFound, name))
	}
	v, err := forms.ValueFromInterface(f.Kind, raw)
	if err != nil {
		return e.fail(UpdateFailure, "set", name, err)
	}
	return e.SetFieldValue(ctx, name, v)
}

// Export re-serializes the current document through the form model and
// returns the result for download. It does not change the editor state.
func (e *Editor) Export() (*Export, error) {
	e.mu.RLock()
	buffer, closed := e.buffer, e.closed
	e.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if buffer == nil {
		return nil, ErrNoDocument
	}

	doc, err := forms.Parse(buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to export document: %w", err)
	}
	data, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to export document: %w", err)
	}

	return &Export{
		FileName: ExportFileName,
		Data:     data,
	}, nil
}

// ChangePage moves the current page by one in direction d, clamped to the
// document. It returns the resulting page, or 0 when no document is loaded.
func (e *Editor) ChangePage(d Direction) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buffer == nil {
		return 0
	}
	e.currentPage = clamp(e.currentPage+int(d), e.totalPages)
	return e.currentPage
}

// GoToPage moves to page, clamped to [1, total pages]
func (e *Editor) GoToPage(page int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buffer == nil {
		return 0
	}
	e.currentPage = clamp(page, e.totalPages)
	return e.currentPage
}

func clamp(page, total int) int {
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// PageView renders the current page
func (e *Editor) PageView(ctx context.Context) (*render.PageView, error) {
	e.mu.RLock()
	buffer, page := e.buffer, e.currentPage
	e.mu.RUnlock()

	if buffer == nil {
		return nil, ErrNoDocument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.renderer.Render(buffer, page)
}

// Document returns a copy of the current document bytes, or nil
func (e *Editor) Document() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return bytes.Clone(e.buffer)
}

// Field returns the descriptor of the named field
func (e *Editor) Field(name string) (forms.Field, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx, found := e.index[name]
	if !found {
		return forms.Field{}, false
	}
	return e.fields[idx], true
}

// Values returns a copy of the field value map
func (e *Editor) Values() map[string]forms.Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.valuesLocked()
}

func (e *Editor) valuesLocked() map[string]forms.Value {
	values := make(map[string]forms.Value, len(e.fields))
	for _, f := range e.fields {
		values[f.Name] = f.Value
	}
	return values
}

// State returns a snapshot of the editor
func (e *Editor) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	fields := make([]forms.Field, len(e.fields))
	copy(fields, e.fields)

	return State{
		Loaded:      e.buffer != nil,
		CurrentPage: e.currentPage,
		TotalPages:  e.totalPages,
		Size:        len(e.buffer),
		Values:      e.valuesLocked(),
		Fields:      fields,
		Warnings:    append([]forms.Warning(nil), e.warnings...),
		LastError:   e.lastErr,
	}
}

// LastError returns the most recent failure that has not been dismissed
func (e *Editor) LastError() *Error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// DismissError clears the most recent failure
func (e *Editor) DismissError() {
	e.mu.Lock()
	e.lastErr = nil
	e.mu.Unlock()
}

// Close discards the document. Further loads and edits fail with ErrClosed.
// An edit in progress completes first.
func (e *Editor) Close() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.buffer = nil
	e.fields = nil
	e.index = make(map[string]int)
	e.currentPage, e.totalPages = 0, 0
	e.warnings = nil
	return nil
}

func (e *Editor) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// checkBytes rejects input that cannot be a PDF before handing it to the parser
func (e *Editor) checkBytes(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("file is empty")
	}
	if e.maxFileSize > 0 && int64(len(data)) > e.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", len(data), e.maxFileSize)
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return fmt.Errorf("file is not a PDF: missing header")
	}
	return nil
}

// fail records err as the last error and as a warning, logs it and returns it
func (e *Editor) fail(kind ErrorKind, op, field string, err error) *Error {
	ee := newError(kind, op, field, err)

	e.mu.Lock()
	e.lastErr = ee
	if kind == UpdateFailure {
		e.warnings = append(e.warnings, forms.Warning{Field: field, Message: err.Error()})
		if len(e.warnings) > maxWarnings {
			e.warnings = e.warnings[len(e.warnings)-maxWarnings:]
		}
	}
	e.mu.Unlock()

	e.logger.Printf("%v", ee)
	return ee
}
