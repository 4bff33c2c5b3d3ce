// Package web serves the form editor over HTTP. Each browser session gets
// its own editor and hosted viewer, identified by a cookie.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/a3tai/pdf-form-editor/internal/editor"
	"github.com/a3tai/pdf-form-editor/internal/session"
	"github.com/a3tai/pdf-form-editor/internal/viewer"
)

const (
	// SessionCookie carries the session id
	SessionCookie = "pfe_session"

	// multipartMemory is the part of an upload kept in memory
	multipartMemory = 8 << 20
	// uploadOverhead allows for multipart framing around the file
	uploadOverhead = 1 << 20

	shutdownGrace = 5 * time.Second
)

// Options configures a Server
type Options struct {
	MaxFileSize int64
	// Sessions is the number of live sessions kept, zero means the store default
	Sessions int
	Viewer   viewer.Config
	Logger   *log.Logger
}

// Server is the HTTP surface of the editor
type Server struct {
	maxFileSize int64
	viewerCfg   viewer.Config
	sessions    *session.Store
	logger      *log.Logger
	sanitizer   *bluemonday.Policy
	mux         *http.ServeMux
}

// NewServer creates the HTTP server and registers its routes
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{
		maxFileSize: opts.MaxFileSize,
		viewerCfg:   opts.Viewer,
		logger:      opts.Logger,
		sanitizer:   bluemonday.StrictPolicy(),
		mux:         http.NewServeMux(),
	}
	s.sessions = session.NewStore(opts.Sessions, s.newSession)

	s.routes()
	return s
}

// newSession builds the editor and viewer of a new browser session
func (s *Server) newSession(id string) *session.Session {
	adapter := viewer.NewAdapter(s.viewerCfg, s.logger)
	adapter.OnSave(func(w viewer.Widget, data json.RawMessage) {
		s.logger.Printf("viewer: session %s widget %s saved %s (%d bytes)", id, w.ID, w.URL, len(data))
	})

	return &session.Session{
		Editor: editor.New(editor.Options{MaxFileSize: s.maxFileSize, Logger: s.logger}),
		Viewer: adapter,
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /document", s.handleUpload)
	s.mux.HandleFunc("GET /document.pdf", s.handleDocument)
	s.mux.HandleFunc("GET /fields", s.handleFields)
	s.mux.HandleFunc("POST /fields/{name}", s.handleSetField)
	s.mux.HandleFunc("POST /page", s.handlePage)
	s.mux.HandleFunc("GET /export", s.handleExport)
	s.mux.HandleFunc("POST /error/dismiss", s.handleDismiss)
	s.mux.HandleFunc("GET /viewer", s.handleViewer)
	s.mux.HandleFunc("POST /viewer/events", s.handleViewerEvent)
	s.mux.HandleFunc("POST /session/close", s.handleCloseSession)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and closes every session
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Printf("listening on %s", addr)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	s.sessions.Close()
	return err
}

// sessionID returns the session id carried by the request, or ""
func sessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// sessionFor returns the request's session, starting a session and setting
// the cookie when needed
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	id := sessionID(r)

	sess := s.sessions.GetOrCreate(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// expireSession tells the browser to drop its session cookie
func expireSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
