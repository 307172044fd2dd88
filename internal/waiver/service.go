// Package waiver orchestrates form sessions, document generation and delivery.
package waiver

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/delivery"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/document"
	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/form"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/security"
)

// DefaultSessionTTL is how long an untouched session is kept
const DefaultSessionTTL = 2 * time.Hour

// Options configures a Service
type Options struct {
	Schema          *schema.Schema
	Template        []byte
	OutputDirectory string
	// Loader defaults to the pdfcpu loader
	Loader document.Loader
	// Sender is nil when delivery is disabled
	Sender     delivery.Sender
	SessionTTL time.Duration
	Clock      func() time.Time
	Debug      bool
}

type sessionEntry struct {
	session *form.Session
	touched time.Time
}

// Service handles waiver sessions by orchestrating the form, filler and delivery components
type Service struct {
	schema        *schema.Schema
	filler        *Filler
	sender        delivery.Sender
	pathValidator *security.PathValidator
	template      *document.TemplateInfo
	ttl           time.Duration
	now           func() time.Time
	debug         bool

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewService creates a service. The template is inspected once and must contain every
// page the schema targets.
func NewService(opts Options) (*Service, error) {
	if opts.Schema == nil {
		return nil, werrors.Configurationf("schema is required")
	}
	pathValidator, err := security.NewPathValidator(opts.OutputDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	info, err := document.Inspect(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect template: %w", err)
	}
	if err := info.CheckPages(opts.Schema.MaxPage()); err != nil {
		return nil, fmt.Errorf("template does not fit schema: %w", err)
	}

	loader := opts.Loader
	if loader == nil {
		loader = document.NewPDFCPULoader()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &Service{
		schema:        opts.Schema,
		filler:        NewFiller(opts.Schema, loader, opts.Template, form.WithClock(now)),
		sender:        opts.Sender,
		pathValidator: pathValidator,
		template:      info,
		ttl:           ttl,
		now:           now,
		debug:         opts.Debug,
		sessions:      make(map[string]*sessionEntry),
	}, nil
}

func (s *Service) debugf(format string, args ...any) {
	if s.debug {
		log.Printf(format, args...)
	}
}

// Schema returns the loaded schema
func (s *Service) Schema() *schema.Schema {
	return s.schema
}

// DescribeSchema returns the public description of every field and collection
func (s *Service) DescribeSchema() *SchemaDescription {
	desc := &SchemaDescription{
		Title:    s.schema.Title,
		FontSize: s.schema.FontSize,
		Pages:    s.template.Pages,
	}
	for _, f := range s.schema.Ordered() {
		fd := FieldDescription{
			ID:         f.ID,
			Label:      f.Label,
			Visible:    f.IsVisible(),
			Input:      f.Input(),
			Required:   f.Required(),
			Collection: f.Collection,
			MinCount:   f.MinCount,
			MaxCount:   f.MaxCount,
			Placement:  f.Placement,
			Signature:  f.Font == schema.FontSignature,
			Targets:    f.Targets,
			Default:    describeExpr(f.Default()),
		}
		if v, ok := f.Variant.(schema.Visible); ok {
			fd.Options = v.Options
		}
		desc.Fields = append(desc.Fields, fd)
	}
	for _, c := range s.schema.Collections() {
		desc.Collections = append(desc.Collections, CollectionDescription{
			ID:       c.ID,
			Title:    c.Title,
			Fields:   c.Fields,
			MinCount: c.MinCount,
			MaxCount: c.MaxCount,
		})
	}
	return desc
}

func describeExpr(expr schema.Expr) string {
	parts := make([]string, 0, len(expr))
	for _, t := range expr {
		switch t.Kind {
		case schema.TokenField:
			parts = append(parts, "{"+t.Value+"}")
		case schema.TokenToday:
			parts = append(parts, "{today}")
		default:
			parts = append(parts, t.Value)
		}
	}
	return strings.Join(parts, "")
}

// StartSession creates a session with every field at its minimum instance count
func (s *Service) StartSession() form.View {
	sess := form.NewSession(s.schema)

	s.mu.Lock()
	s.sweepLocked()
	s.sessions[sess.ID] = &sessionEntry{session: sess, touched: s.now()}
	active := len(s.sessions)
	s.mu.Unlock()

	s.debugf("session %s started (%d active)", sess.ID, active)
	return sess.View()
}

// Session returns a live session and marks it as used
func (s *Service) Session(id string) (*form.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok || s.expiredLocked(entry) {
		delete(s.sessions, id)
		return nil, werrors.NotFoundf("unknown session %q", id)
	}
	entry.touched = s.now()
	return entry.session, nil
}

// SessionView returns the display state of a session
func (s *Service) SessionView(id string) (form.View, error) {
	sess, err := s.Session(id)
	if err != nil {
		return form.View{}, err
	}
	return sess.View(), nil
}

// EndSession discards a session
func (s *Service) EndSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return werrors.NotFoundf("unknown session %q", id)
	}
	delete(s.sessions, id)
	s.debugf("session %s ended", id)
	return nil
}

// ResetSession clears every value and instance of a session
func (s *Service) ResetSession(id string) (form.View, error) {
	sess, err := s.Session(id)
	if err != nil {
		return form.View{}, err
	}
	sess.Reset()
	return sess.View(), nil
}

// ActiveSessions returns the number of live sessions
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) expiredLocked(entry *sessionEntry) bool {
	return s.now().Sub(entry.touched) > s.ttl
}

func (s *Service) sweepLocked() {
	for id, entry := range s.sessions {
		if s.expiredLocked(entry) {
			delete(s.sessions, id)
			s.debugf("session %s expired", id)
		}
	}
}

// UpdateField stores a field value and returns the formatted value
func (s *Service) UpdateField(req UpdateFieldRequest) (*UpdateFieldResult, error) {
	sess, err := s.Session(req.SessionID)
	if err != nil {
		return nil, err
	}
	value, err := sess.UpdateField(req.FieldID, req.Index, req.Value)
	if err != nil {
		return nil, err
	}
	return &UpdateFieldResult{FieldID: req.FieldID, Index: req.Index, Value: value, View: sess.View()}, nil
}

// AddInstance adds an instance of a field or collection
func (s *Service) AddInstance(req InstanceRequest) (*InstanceResult, error) {
	sess, err := s.Session(req.SessionID)
	if err != nil {
		return nil, err
	}
	id, err := sess.AddInstance(req.Target)
	if err != nil {
		return nil, err
	}
	view := sess.View()
	return &InstanceResult{Target: req.Target, InstanceID: id, Count: instanceCount(view, req.Target), View: view}, nil
}

// RemoveInstance removes an instance of a field or collection
func (s *Service) RemoveInstance(req InstanceRequest) (*InstanceResult, error) {
	sess, err := s.Session(req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RemoveInstance(req.Target, req.Index); err != nil {
		return nil, err
	}
	view := sess.View()
	return &InstanceResult{Target: req.Target, Count: instanceCount(view, req.Target), View: view}, nil
}

func instanceCount(view form.View, target string) int {
	for _, c := range view.Collections {
		if c.ID == target {
			return len(c.Instances)
		}
	}
	for _, f := range view.Fields {
		if f.ID == target {
			return len(f.Instances)
		}
	}
	return 0
}

// Submit generates the session's document. When an output name is given the document is
// written into the output directory; when recipients are given it is e-mailed. A delivery
// failure is reported after the document has been generated and written.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	sess, err := s.Session(req.SessionID)
	if err != nil {
		return nil, err
	}

	var path string
	if req.OutputName != "" {
		path, err = s.pathValidator.ResolveOutput(req.OutputName)
		if err != nil {
			return nil, werrors.Wrap(werrors.ErrorTypeInvalidInput, "invalid output name", err)
		}
	}
	if len(req.Recipients) > 0 && s.sender == nil {
		return nil, werrors.NewFillError(werrors.ErrorTypeDelivery, "e-mail delivery is not configured")
	}

	start := s.now()
	out, report, err := s.filler.Submit(ctx, sess)
	if err != nil {
		s.debugf("session %s submit failed: %v", sess.ID, err)
		return nil, err
	}
	s.debugf("session %s generated %d bytes with %d draws in %v", sess.ID, len(out), len(report.Draws), s.now().Sub(start))

	result := &SubmitResult{
		SessionID: sess.ID,
		Size:      len(out),
		Bytes:     out,
		Draws:     len(report.Draws),
		Skipped:   report.Skipped,
		Report:    report,
	}

	if path != "" {
		if err := s.pathValidator.EnsureDirectory(); err != nil {
			return nil, fmt.Errorf("failed to prepare output directory: %w", err)
		}
		if err := os.WriteFile(path, out, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write document: %w", err)
		}
		result.Path = path
	}

	if len(req.Recipients) > 0 {
		signer := s.primaryValue(sess)
		msg := delivery.Message{
			To:         req.Recipients,
			Body:       delivery.Body(s.schema.Title, signer),
			Filename:   attachmentName(path, sess.ID),
			Attachment: out,
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			return result, err
		}
		result.Delivered = req.Recipients
	}
	return result, nil
}

// primaryValue returns the entered value of the first visible field in processing order,
// which names the signer on the default waiver
func (s *Service) primaryValue(sess *form.Session) string {
	values := sess.Snapshot()
	for _, f := range s.schema.Ordered() {
		if f.IsVisible() {
			v, _ := values.Value(f.ID, 0)
			return v
		}
	}
	return ""
}

func attachmentName(path, sessionID string) string {
	if path != "" {
		return filepath.Base(path)
	}
	return "waiver-" + sessionID[:8] + ".pdf"
}

// InspectTemplate returns the template layout checked at startup
func (s *Service) InspectTemplate() *document.TemplateInfo {
	return s.template
}

// ServerInfo describes the running service
func (s *Service) ServerInfo() *ServerInfo {
	return &ServerInfo{
		Title:           s.schema.Title,
		OutputDirectory: s.pathValidator.OutputDirectory(),
		ActiveSessions:  s.ActiveSessions(),
		Delivery:        s.sender != nil,
		Template:        s.template,
	}
}
