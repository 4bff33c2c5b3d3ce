package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a3tai/pdf-form-editor/internal/editor"
	"github.com/a3tai/pdf-form-editor/internal/pages"
	"github.com/a3tai/pdf-form-editor/internal/pdf/forms"
	"github.com/a3tai/pdf-form-editor/internal/pdf/render"
	"github.com/a3tai/pdf-form-editor/internal/viewer"
)

// errorResponse is the JSON body of a failed request
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// fieldResponse is the JSON body of a successful field edit
type fieldResponse struct {
	Field string      `json:"field"`
	Value forms.Value `json:"value"`
}

// pageResponse is the JSON body of a page change
type pageResponse struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// viewerEvent is what the viewer page posts for each widget event
type viewerEvent struct {
	Widget string `json:"widget"`
	viewer.Event
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ed := s.sessionFor(w, r).Editor
	state := ed.State()

	data := pages.Context{
		"loaded":        state.Loaded,
		"max_file_size": s.maxFileSize,
	}
	if state.LastError != nil {
		data["error"] = s.sanitize(state.LastError.Error())
	}
	warnings := make([]string, 0, len(state.Warnings))
	for _, warning := range state.Warnings {
		warnings = append(warnings, s.sanitize(warning.String()))
	}
	data["warnings"] = warnings

	if state.Loaded {
		view, err := ed.PageView(r.Context())
		if err != nil {
			s.logger.Printf("render page %d: %v", state.CurrentPage, err)
			view = &render.PageView{Page: state.CurrentPage, TotalPages: state.TotalPages}
		}
		data["current_page"] = state.CurrentPage
		data["total_pages"] = state.TotalPages
		data["size"] = state.Size
		data["page_text"] = view.Text
		data["fields"] = fieldViews(state.Fields)
	}

	var buf bytes.Buffer
	if err := pages.Default().Render(&buf, pages.Index, data); err != nil {
		s.logger.Printf("render index: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// fieldViews flattens fields into the values the index page shows
func fieldViews(fields []forms.Field) []map[string]interface{} {
	views := make([]map[string]interface{}, 0, len(fields))
	for _, f := range fields {
		views = append(views, map[string]interface{}{
			"name":       f.Name,
			"kind":       f.Kind.String(),
			"value":      f.Value.String(),
			"checked":    f.Value.Bool(),
			"options":    f.Options,
			"read_only":  f.ReadOnly,
			"required":   f.Required,
			"editable":   f.Editable,
			"max_length": f.MaxLength,
			"page":       f.Page,
		})
	}
	return views
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ed := s.sessionFor(w, r).Editor

	if s.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxFileSize+uploadOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid multipart payload: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, errors.New("file field is required"))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("only .pdf files are accepted, got %q", filepath.Base(header.Filename)))
		return
	}

	reader := io.Reader(file)
	if s.maxFileSize > 0 {
		// one byte over the limit is enough for the editor to reject it
		reader = io.LimitReader(file, s.maxFileSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	if err := ed.LoadDocument(r.Context(), data); err != nil {
		s.fail(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	s.logger.Printf("upload: %s (%d bytes)", filepath.Base(header.Filename), len(data))
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, ed.State())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	ed := s.sessionFor(w, r).Editor

	data := ed.Document()
	if data == nil {
		http.Error(w, editor.ErrNoDocument.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	ed := s.sessionFor(w, r).Editor
	writeJSON(w, http.StatusOK, ed.State())
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	ed := s.sessionFor(w, r).Editor
	name := r.PathValue("name")

	var err error
	if isJSON(r) {
		var body struct {
			Value interface{} `json:"value"`
		}
		if decodeErr := json.NewDecoder(r.Body).Decode(&body); decodeErr != nil {
			s.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", decodeErr))
			return
		}
		err = ed.SetFieldValueInterface(r.Context(), name, body.Value)
	} else {
		if parseErr := r.ParseForm(); parseErr != nil {
			s.fail(w, r, http.StatusBadRequest, parseErr)
			return
		}
		err = ed.SetFieldValueString(r.Context(), name, lastValue(r, "value"))
	}

	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, forms.ErrFieldNotFound) {
			status = http.StatusNotFound
		}
		s.fail(w, r, status, err)
		return
	}

	if wantsJSON(r) {
		f, _ := ed.Field(name)
		writeJSON(w, http.StatusOK, fieldResponse{Field: name, Value: f.Value})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// lastValue returns the last submitted value of key, so a checked checkbox
// overrides the hidden "false" input rendered before it
func lastValue(r *http.Request, key string) string {
	values := r.PostForm[key]
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ed := s.sessionFor(w, r).Editor

	if err := r.ParseForm(); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	var page int
	switch direction := r.PostFormValue("direction"); direction {
	case "next":
		page = ed.ChangePage(editor.Next)
	case "prev", "previous":
		page = ed.ChangePage(editor.Previous)
	case "":
		n, err := strconv.Atoi(r.PostFormValue("page"))
		if err != nil {
			s.fail(w, r, http.StatusBadRequest, errors.New("direction or page is required"))
			return
		}
		page = ed.GoToPage(n)
	default:
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("unknown direction %q", direction))
		return
	}

	if page == 0 {
		s.fail(w, r, http.StatusConflict, editor.ErrNoDocument)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, pageResponse{Page: page, TotalPages: ed.State().TotalPages})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ed := s.sessionFor(w, r).Editor

	export, err := ed.Export()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": export.FileName,
	}))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	_, _ = w.Write(export.Data)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	ed := s.sessionFor(w, r).Editor
	ed.DismissError()

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	adapter := s.sessionFor(w, r).Viewer

	pdfURL := r.URL.Query().Get("url")
	if pdfURL == "" {
		pdfURL = "/document.pdf"
	}

	if _, err := adapter.Mount(pdfURL); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	var buf bytes.Buffer
	if err := adapter.Render(&buf); err != nil {
		s.logger.Printf("render viewer: %v", err)
		http.Error(w, "failed to render viewer", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleViewerEvent(w http.ResponseWriter, r *http.Request) {
	var ev viewerEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, s.eventLimit())).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid event payload"})
		return
	}

	// events never start a session, a widget only exists inside one
	sess, ok := s.sessions.Get(sessionID(r))
	if !ok {
		writeJSON(w, http.StatusConflict, errorResponse{Error: viewer.ErrNotMounted.Error()})
		return
	}

	receipt, err := sess.Viewer.HandleEvent(ev.Widget, ev.Event)
	switch {
	case errors.Is(err, viewer.ErrStaleWidget), errors.Is(err, viewer.ErrNotMounted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleCloseSession ends the request's session, closing its editor and
// tearing down its viewer widget
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" && s.sessions.Remove(id) {
		s.logger.Printf("session %s closed", id)
	}
	expireSession(w)

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// eventLimit bounds the size of a viewer event body
func (s *Server) eventLimit() int64 {
	if s.maxFileSize > 0 {
		return s.maxFileSize
	}
	return 1 << 20
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Stats(),
		"viewer":   s.sessions.ViewerStats(),
	})
}

// fail reports err. JSON clients get an error body, browsers are sent back
// to the editor page where the last error is shown, and anything the editor
// did not record is written as plain text.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	var ee *editor.Error
	recorded := errors.As(err, &ee)

	if wantsJSON(r) {
		body := errorResponse{Error: err.Error()}
		if recorded {
			body.Kind = ee.Kind.String()
		}
		writeJSON(w, status, body)
		return
	}
	if recorded {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Error(w, err.Error(), status)
}

// sanitize strips markup from untrusted text. The result is rendered with
// the safe filter.
func (s *Server) sanitize(text string) string {
	return s.sanitizer.Sanitize(text)
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func wantsJSON(r *http.Request) bool {
	return isJSON(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
