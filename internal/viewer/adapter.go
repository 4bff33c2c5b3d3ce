// Package viewer bridges a PDF URL to a third party hosted viewer widget
// (the Adobe PDF Embed API) and relays the widget's save events back to Go.
//
// The widget owns all field state. The adapter only knows which widget is
// mounted, renders the page that boots it and accepts its events.
package viewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/a3tai/pdf-form-editor/internal/pages"
)

const (
	// DefaultContainerID is the id of the element the widget renders into
	DefaultContainerID = "adobe-pdf-viewer"
	// DefaultSDKURL is the location of the vendor script
	DefaultSDKURL = "https://acrobatservices.adobe.com/view-sdk/viewer.js"
	// DefaultFileName is the file name the widget shows
	DefaultFileName = "Sample.pdf"
	// DefaultEventsPath is where the page posts widget events
	DefaultEventsPath = "/viewer/events"
	// EmbedMode is the inline preview mode with the document in page flow
	EmbedMode = "IN_LINE"
	// SaveConfirmation is shown to the user after a save event
	SaveConfirmation = "Form submitted successfully!"
)

var (
	// ErrNotMounted is returned when no widget is mounted
	ErrNotMounted = errors.New("no viewer widget mounted")
	// ErrStaleWidget is returned for events from a widget that was torn down
	ErrStaleWidget = errors.New("event from a widget that is no longer mounted")
	// ErrInvalidURL is returned by Mount for URLs the widget cannot load
	ErrInvalidURL = errors.New("invalid document URL")
)

// EventType is the type tag of a widget event
type EventType string

// EventSave is emitted by the widget when the user saves the form
const EventSave EventType = "SAVE"

// Event is an event emitted by the hosted widget. Data is opaque.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Config configures the adapter
type Config struct {
	ClientID    string
	ContainerID string
	SDKURL      string
	FileName    string
	EventsPath  string
}

// Widget is one mounted viewer instance
type Widget struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ContainerID string    `json:"container_id"`
	EmbedMode   string    `json:"embed_mode"`
	FormFilling bool      `json:"form_filling"`
	FileName    string    `json:"file_name"`
	MountedAt   time.Time `json:"mounted_at"`
}

// Receipt acknowledges a widget event
type Receipt struct {
	Message  string `json:"message,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// SaveFunc is called for every save event of the mounted widget
type SaveFunc func(w Widget, data json.RawMessage)

// Stats describes adapter usage
type Stats struct {
	Mounted  int `json:"mounted"`
	TornDown int `json:"torn_down"`
	Saves    int `json:"saves"`
}

// Adapter manages at most one mounted widget
type Adapter struct {
	cfg       Config
	logger    *log.Logger
	sanitizer *bluemonday.Policy

	mu      sync.Mutex
	current *Widget
	onSave  SaveFunc
	stats   Stats
}

// withDefaults fills in empty config values
func (c Config) withDefaults() Config {
	if c.ContainerID == "" {
		c.ContainerID = DefaultContainerID
	}
	if c.SDKURL == "" {
		c.SDKURL = DefaultSDKURL
	}
	if c.FileName == "" {
		c.FileName = DefaultFileName
	}
	if c.EventsPath == "" {
		c.EventsPath = DefaultEventsPath
	}
	return c
}

// NewAdapter creates an adapter, filling in defaults for empty config values
func NewAdapter(cfg Config, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{
		cfg:       cfg.withDefaults(),
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Mount hands pdfURL to a new widget. A widget mounted for another URL is
// torn down first; mounting the URL that is already shown keeps the
// current widget.
func (a *Adapter) Mount(pdfURL string) (*Widget, error) {
	if err := validateURL(pdfURL); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		if a.current.URL == pdfURL {
			w := *a.current
			return &w, nil
		}
		a.teardownLocked()
	}

	a.current = &Widget{
		ID:          uuid.NewString(),
		URL:         pdfURL,
		ContainerID: a.cfg.ContainerID,
		EmbedMode:   EmbedMode,
		FormFilling: true,
		FileName:    a.cfg.FileName,
		MountedAt:   time.Now(),
	}
	a.stats.Mounted++
	a.logger.Printf("viewer: mounted widget %s for %s", a.current.ID, pdfURL)

	w := *a.current
	return &w, nil
}

// Unmount tears down the current widget, if any
func (a *Adapter) Unmount() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.teardownLocked()
}

func (a *Adapter) teardownLocked() {
	if a.current == nil {
		return
	}
	a.logger.Printf("viewer: tore down widget %s", a.current.ID)
	a.current = nil
	a.stats.TornDown++
}

// Current returns the mounted widget
func (a *Adapter) Current() (*Widget, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return nil, false
	}
	w := *a.current
	return &w, true
}

// OnSave registers fn as the save callback, replacing any earlier one
func (a *Adapter) OnSave(fn SaveFunc) {
	a.mu.Lock()
	a.onSave = fn
	a.mu.Unlock()
}

// HandleEvent relays an event from widget widgetID. Save events invoke the
// save callback and return the confirmation for the user; other event types
// are acknowledged with an empty receipt.
func (a *Adapter) HandleEvent(widgetID string, ev Event) (*Receipt, error) {
	a.mu.Lock()
	current := a.current
	fn := a.onSave
	if current == nil {
		a.mu.Unlock()
		return nil, ErrNotMounted
	}
	if current.ID != widgetID {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrStaleWidget, widgetID)
	}
	w := *current
	if ev.Type == EventSave {
		a.stats.Saves++
	}
	a.mu.Unlock()

	if ev.Type != EventSave {
		return &Receipt{}, nil
	}

	a.logger.Printf("viewer: save event from widget %s (%d bytes)", w.ID, len(ev.Data))
	if fn != nil {
		fn(w, ev.Data)
	}
	return &Receipt{
		Message:  SaveConfirmation,
		FileName: a.savedFileName(ev.Data),
	}, nil
}

// savedFileName pulls the file name out of a save payload. The payload shape
// is owned by the vendor, so anything unexpected yields "".
func (a *Adapter) savedFileName(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var payload struct {
		FileName string `json:"fileName"`
		MetaData struct {
			FileName string `json:"fileName"`
		} `json:"metaData"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	name := payload.FileName
	if name == "" {
		name = payload.MetaData.FileName
	}
	return strings.TrimSpace(a.sanitizer.Sanitize(name))
}

// Stats returns adapter statistics
func (a *Adapter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Render writes the HTML page that boots the mounted widget
func (a *Adapter) Render(w io.Writer) error {
	current, ok := a.Current()
	if !ok {
		return ErrNotMounted
	}

	// settings reach the page script through an escaped data attribute
	settings, err := json.Marshal(map[string]string{
		"clientId":   a.cfg.ClientID,
		"url":        current.URL,
		"fileName":   current.FileName,
		"embedMode":  current.EmbedMode,
		"eventsPath": a.cfg.EventsPath,
	})
	if err != nil {
		return fmt.Errorf("encode viewer settings: %w", err)
	}

	return pages.Default().Render(w, pages.Viewer, pages.Context{
		"file_name":    current.FileName,
		"sdk_url":      a.cfg.SDKURL,
		"container_id": current.ContainerID,
		"widget_id":    current.ID,
		"config":       string(settings),
	})
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("%w: missing host", ErrInvalidURL)
		}
	case "":
		if !strings.HasPrefix(u.Path, "/") {
			return fmt.Errorf("%w: relative URLs must start with /", ErrInvalidURL)
		}
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	return nil
}
