package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-form-editor/internal/pdf/forms"
	"github.com/a3tai/pdf-form-editor/internal/pdf/pdftest"
	"github.com/a3tai/pdf-form-editor/internal/session"
	"github.com/a3tai/pdf-form-editor/internal/viewer"
)

const testMaxFileSize = 1 << 20

func newTestServer(t *testing.T) *Server {
	t.Helper()

	s := NewServer(Options{
		MaxFileSize: testMaxFileSize,
		Sessions:    8,
		Viewer:      viewer.Config{ClientID: "test-client"},
		Logger:      log.New(io.Discard, "", 0),
	})
	t.Cleanup(s.sessions.Close)
	return s
}

// client replays the session cookie like a browser would
type client struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func newClient(t *testing.T, s *Server) *client {
	return &client{t: t, h: s.Handler()}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()

	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (c *client) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) postJSON(target string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()

	data, err := json.Marshal(body)
	require.NoError(c.t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) upload(filename string, data []byte) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(c.t, err)
	_, err = part.Write(data)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

type fieldsBody struct {
	Loaded      bool                   `json:"loaded"`
	CurrentPage int                    `json:"current_page"`
	TotalPages  int                    `json:"total_pages"`
	Values      map[string]interface{} `json:"values"`
	LastError   *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (c *client) fields() fieldsBody {
	c.t.Helper()

	rec := c.get("/fields")
	require.Equal(c.t, http.StatusOK, rec.Code)

	var body fieldsBody
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestIndex_NoDocument(t *testing.T) {
	c := newClient(t, newTestServer(t))

	rec := c.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `accept=".pdf"`)
	assert.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)

	// the cookie is kept, not reissued
	first := c.cookie.Value
	rec = c.get("/")
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, first, c.cookie.Value)
}

func TestUploadEditExport(t *testing.T) {
	c := newClient(t, newTestServer(t))

	rec := c.upload("form.pdf", pdftest.NameAgree())
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	body := c.fields()
	assert.True(t, body.Loaded)
	assert.Equal(t, 2, body.TotalPages)
	if diff := cmp.Diff(map[string]interface{}{"Name": "", "Agree": false}, body.Values); diff != "" {
		t.Fatalf("values after upload (-want +got):\n%s", diff)
	}

	page := c.get("/").Body.String()
	assert.Contains(t, page, `action="/fields/Name"`)
	assert.Contains(t, page, `action="/fields/Agree"`)
	assert.Contains(t, page, "Page 1 of 2")

	rec = c.postForm("/fields/Name", url.Values{"value": {"Alice"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body = c.fields()
	if diff := cmp.Diff(map[string]interface{}{"Name": "Alice", "Agree": false}, body.Values); diff != "" {
		t.Fatalf("values after edit (-want +got):\n%s", diff)
	}

	rec = c.get("/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=filled-form.pdf`, rec.Header().Get("Content-Disposition"))

	doc, err := forms.Parse(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Alice", doc.Values()["Name"].String())
}

func TestSetField_Checkbox(t *testing.T) {
	c := newClient(t, newTestServer(t))
	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", pdftest.NameAgree()).Code)

	// hidden "false" followed by the checked box
	rec := c.postForm("/fields/Agree", url.Values{"value": {"false", "true"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, true, c.fields().Values["Agree"])

	rec = c.postForm("/fields/Agree", url.Values{"value": {"false"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, false, c.fields().Values["Agree"])
}

func TestSetField_JSON(t *testing.T) {
	c := newClient(t, newTestServer(t))
	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", pdftest.AllKinds()).Code)

	rec := c.postJSON("/fields/Agree", map[string]interface{}{"value": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"field":"Agree","value":false}`, rec.Body.String())

	rec = c.postJSON("/fields/Color", map[string]interface{}{"value": "Red"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"field":"Color","value":"Red"}`, rec.Body.String())

	values := c.fields().Values
	assert.Equal(t, false, values["Agree"])
	assert.Equal(t, "Red", values["Color"])
}

func TestSetField_Rejected(t *testing.T) {
	c := newClient(t, newTestServer(t))
	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", pdftest.AllKinds()).Code)

	before := c.get("/document.pdf").Body.Bytes()

	tests := []struct {
		name   string
		field  string
		value  interface{}
		status int
	}{
		{name: "wrong type", field: "Agree", value: "yes", status: http.StatusUnprocessableEntity},
		{name: "unknown option", field: "Country", value: "FR", status: http.StatusUnprocessableEntity},
		{name: "unknown field", field: "Missing", value: "x", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.postJSON("/fields/"+tt.field, map[string]interface{}{"value": tt.value})
			assert.Equal(t, tt.status, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "UPDATE_FAILURE", body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}

	assert.Equal(t, before, c.get("/document.pdf").Body.Bytes())
	assert.Equal(t, "UPDATE_FAILURE", c.fields().LastError.Kind)
}

func TestSetField_InvalidJSON(t *testing.T) {
	c := newClient(t, newTestServer(t))
	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", pdftest.NameAgree()).Code)

	req := httptest.NewRequest(http.MethodPost, "/fields/Name", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := c.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_Rejected(t *testing.T) {
	c := newClient(t, newTestServer(t))
	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", pdftest.NameAgree()).Code)
	require.Equal(t, http.StatusSeeOther, c.postForm("/fields/Name", url.Values{"value": {"Kept"}}).Code)

	t.Run("wrong extension", func(t *testing.T) {
		rec := c.upload("notes.txt", []byte("hello"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "only .pdf files are accepted")
	})

	t.Run("not a pdf", func(t *testing.T) {
		rec := c.upload("fake.pdf", []byte("this is not a pdf"))
		require.Equal(t, http.StatusSeeOther, rec.Code)

		body := c.fields()
		require.NotNil(t, body.LastError)
		assert.Equal(t, "LOAD_FAILURE", body.LastError.Kind)
		assert.Equal(t, "Kept", body.Values["Name"])

		page := c.get("/").Body.String()
		assert.Contains(t, page, `class="error"`)
		assert.Contains(t, page, "LOAD_FAILURE")
	})

	t.Run("too large", func(t *testing.T) {
		big := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte(" "), testMaxFileSize)...)
		rec := c.upload("big.pdf", big)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, c.fields().LastError.Message, "file too large")
		assert.Equal(t, "Kept", c.fields().Values["Name"])
	})

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("other", "x"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/document", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, c.do(req).Code)
	})
}

func TestErrorBanner_SanitizedAndDismissed(t *testing.T) {
	c := newClient(t, newTestServer(t))
	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", pdftest.NameAgree()).Code)

	rec := c.postForm("/fields/"+url.PathEscape("<i>x"), url.Values{"value": {"v"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page := c.get("/").Body.String()
	assert.Contains(t, page, `class="error"`)
	assert.Contains(t, page, "UPDATE_FAILURE")
	assert.NotContains(t, page, "<i>")

	rec = c.postForm("/error/dismiss", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page = c.get("/").Body.String()
	assert.NotContains(t, page, `class="error"`)
	assert.Nil(t, c.fields().LastError)
}

func TestPage(t *testing.T) {
	c := newClient(t, newTestServer(t))

	req := httptest.NewRequest(http.MethodPost, "/page", strings.NewReader("direction=next"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	assert.Equal(t, http.StatusConflict, c.do(req).Code)

	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", pdftest.NameAgree()).Code)

	tests := []struct {
		form url.Values
		want int
	}{
		{form: url.Values{"direction": {"prev"}}, want: 1},
		{form: url.Values{"direction": {"next"}}, want: 2},
		{form: url.Values{"direction": {"next"}}, want: 2},
		{form: url.Values{"page": {"0"}}, want: 1},
		{form: url.Values{"page": {"9"}}, want: 2},
		{form: url.Values{"direction": {"previous"}}, want: 1},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/page", strings.NewReader(tt.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		rec := c.do(req)
		require.Equal(t, http.StatusOK, rec.Code, tt.form.Encode())

		var body pageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, pageResponse{Page: tt.want, TotalPages: 2}, body, tt.form.Encode())
	}

	assert.Equal(t, http.StatusBadRequest, c.postForm("/page", url.Values{"direction": {"up"}}).Code)
	assert.Equal(t, http.StatusBadRequest, c.postForm("/page", nil).Code)

	// html form posts go back to the editor page
	rec := c.postForm("/page", url.Values{"direction": {"next"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, c.get("/").Body.String(), "Page 2 of 2")
}

func TestDocument(t *testing.T) {
	c := newClient(t, newTestServer(t))

	assert.Equal(t, http.StatusNotFound, c.get("/document.pdf").Code)
	assert.Equal(t, http.StatusNotFound, c.get("/export").Code)

	data := pdftest.NameAgree()
	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", data).Code)

	rec := c.get("/document.pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "inline", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestServer(t)
	alice := newClient(t, s)
	bob := newClient(t, s)

	require.Equal(t, http.StatusSeeOther, alice.upload("form.pdf", pdftest.NameAgree()).Code)
	assert.True(t, alice.fields().Loaded)
	assert.False(t, bob.fields().Loaded)
	assert.NotEqual(t, alice.cookie.Value, bob.cookie.Value)
}

func TestViewer(t *testing.T) {
	c := newClient(t, newTestServer(t))

	rec := c.get("/viewer?url=" + url.QueryEscape("javascript:alert(1)"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.get("/viewer?url=" + url.QueryEscape("https://example.com/a.pdf"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="adobe-pdf-viewer"`)
	assert.Contains(t, rec.Body.String(), "test-client")
	first := widgetID(t, rec.Body.String())

	rec = c.get("/viewer")
	require.Equal(t, http.StatusOK, rec.Code)
	second := widgetID(t, rec.Body.String())
	assert.NotEqual(t, first, second)

	rec = c.postJSON("/viewer/events", map[string]interface{}{
		"widget": first,
		"type":   "SAVE",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.postJSON("/viewer/events", map[string]interface{}{
		"widget": second,
		"type":   "SAVE",
		"data":   map[string]interface{}{"fileName": "<b>done</b>.pdf"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var receipt viewer.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, "Form submitted successfully!", receipt.Message)
	assert.Equal(t, "done.pdf", receipt.FileName)

	req := httptest.NewRequest(http.MethodPost, "/viewer/events", strings.NewReader("not json"))
	assert.Equal(t, http.StatusBadRequest, c.do(req).Code)
}

func TestViewer_SessionsKeepTheirWidgets(t *testing.T) {
	s := newTestServer(t)
	alice := newClient(t, s)
	bob := newClient(t, s)

	rec := alice.get("/viewer?url=" + url.QueryEscape("/a.pdf"))
	require.Equal(t, http.StatusOK, rec.Code)
	aliceWidget := widgetID(t, rec.Body.String())

	rec = bob.get("/viewer?url=" + url.QueryEscape("/b.pdf"))
	require.Equal(t, http.StatusOK, rec.Code)
	bobWidget := widgetID(t, rec.Body.String())

	rec = alice.postJSON("/viewer/events", map[string]interface{}{"widget": aliceWidget, "type": "SAVE"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = bob.postJSON("/viewer/events", map[string]interface{}{"widget": bobWidget, "type": "SAVE"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// a widget id is only valid inside its own session
	rec = bob.postJSON("/viewer/events", map[string]interface{}{"widget": aliceWidget, "type": "SAVE"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	stranger := newClient(t, s)
	rec = stranger.postJSON("/viewer/events", map[string]interface{}{"widget": aliceWidget, "type": "SAVE"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Nil(t, stranger.cookie, "events must not start a session")
}

func TestCloseSession(t *testing.T) {
	s := newTestServer(t)
	c := newClient(t, s)

	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", pdftest.NameAgree()).Code)
	rec := c.get("/viewer")
	require.Equal(t, http.StatusOK, rec.Code)
	widget := widgetID(t, rec.Body.String())
	closed := c.cookie.Value

	rec = c.postForm("/session/close", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 0, s.sessions.Len())
	require.NotNil(t, c.cookie)
	assert.Equal(t, -1, c.cookie.MaxAge)

	// the old cookie no longer reaches the closed widget or document
	c.cookie = &http.Cookie{Name: SessionCookie, Value: closed}
	rec = c.postJSON("/viewer/events", map[string]interface{}{"widget": widget, "type": "SAVE"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, c.fields().Loaded)
	assert.NotEqual(t, closed, c.cookie.Value)

	req := httptest.NewRequest(http.MethodPost, "/session/close", nil)
	req.Header.Set("Accept", "application/json")
	assert.Equal(t, http.StatusNoContent, c.do(req).Code)
}

func TestIndex_EscapesFieldValues(t *testing.T) {
	c := newClient(t, newTestServer(t))
	require.Equal(t, http.StatusSeeOther, c.upload("form.pdf", pdftest.NameAgree()).Code)

	rec := c.postForm("/fields/Name", url.Values{"value": {`"><script>alert(1)</script>`}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page := c.get("/").Body.String()
	assert.NotContains(t, page, "<script>alert(1)")
	assert.Contains(t, page, "&lt;script&gt;")
}

// widgetID pulls the mounted widget id out of a viewer page
func widgetID(t *testing.T, page string) string {
	t.Helper()

	const marker = `data-widget="`
	start := strings.Index(page, marker)
	require.GreaterOrEqual(t, start, 0, "widget id missing")
	rest := page[start+len(marker):]
	end := strings.Index(rest, `"`)
	require.Greater(t, end, 0)
	return rest[:end]
}

func TestHealth(t *testing.T) {
	c := newClient(t, newTestServer(t))
	c.get("/")

	rec := c.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status   string        `json:"status"`
		Sessions session.Stats `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Sessions.Size)
}

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(Options{Logger: log.New(io.Discard, "", 0)})
	t.Cleanup(s.sessions.Close)

	c := newClient(t, s)
	assert.Equal(t, http.StatusOK, c.get("/healthz").Code)
	assert.Equal(t, http.StatusNotFound, c.get("/missing").Code)
}
